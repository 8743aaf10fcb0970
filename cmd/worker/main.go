package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"classtrack/internal/config"
	"classtrack/internal/queue"
	"classtrack/internal/store"
)

// Worker consumes record-created events and keeps a running per-day summary
// of committed attendance, logged as records arrive. It reads each record
// back from the store so the summary reflects what was actually persisted.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()
	docs := store.NewPostgresDocuments(db.Client)

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classtrack:records")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	// date -> "period/status" -> count
	summary := make(map[string]map[string]int)

	log.Println("worker started, waiting for record events...")
	for msg := range messages {
		if msg.Type != "record" {
			continue
		}

		var evt struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(msg.Body, &evt); err != nil || evt.ID == "" {
			log.Printf("skipping malformed record event: %s", msg.Body)
			continue
		}

		doc, err := docs.Get(ctx, store.CollectionAttendance, evt.ID)
		if err != nil {
			log.Printf("fetch record %s failed: %v", evt.ID, err)
			continue
		}

		date := doc.String("date")
		key := doc.String("period") + "/" + doc.String("status")
		if summary[date] == nil {
			summary[date] = make(map[string]int)
		}
		summary[date][key]++

		log.Printf("record %s: teacher=%s student=%s %s on %s, day totals: %v",
			evt.ID, doc.String("teacherId"), doc.String("studentId"), key, date, summary[date])
	}

	log.Println("worker stopped")
}

// Package roster manages the students owned by a teacher and guards
// attendance recording against scans of students from other rosters.
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"classtrack/internal/store"
)

// Student is a roster entry. Student ids are unique per owning teacher, not
// globally; the same id may exist under different teachers.
type Student struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
	Section   string `json:"section"`
	TeacherID string `json:"teacherId"`
	CreatedAt string `json:"createdAt"`
}

// Payload is the flat JSON shape embedded in a student's QR code. Name and
// section are display hints only; studentId is re-verified against the store
// before any record is created.
type Payload struct {
	Name           string `json:"name"`
	StudentID      string `json:"studentId"`
	Section        string `json:"section"`
	OwnerTeacherID string `json:"ownerTeacherId"`
}

// ErrUnrecognizedPayload means the scanned bytes are not a student QR code.
var ErrUnrecognizedPayload = errors.New("qr code format not recognized")

// ParsePayload decodes scanned QR bytes. Anything that is not the expected
// JSON shape with a student id is rejected, never a crash.
func ParsePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, ErrUnrecognizedPayload
	}
	if p.StudentID == "" {
		return Payload{}, ErrUnrecognizedPayload
	}
	return p, nil
}

// Service is roster management: teachers create, list and remove their own
// students. Reads and writes go through the document store.
type Service struct {
	docs store.Documents
}

// NewService builds the roster service.
func NewService(docs store.Documents) *Service {
	return &Service{docs: docs}
}

// Add creates a student owned by the teacher.
func (s *Service) Add(ctx context.Context, teacherID, teacherName, name, studentID, section string) (Student, error) {
	name = strings.TrimSpace(name)
	studentID = strings.TrimSpace(studentID)
	section = strings.TrimSpace(section)
	if name == "" || studentID == "" || section == "" {
		return Student{}, errors.New("name, student id and section are required")
	}
	st := Student{
		Name:      name,
		StudentID: studentID,
		Section:   section,
		TeacherID: teacherID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	id, err := s.docs.Create(ctx, store.CollectionStudents, map[string]any{
		"name":        st.Name,
		"studentId":   st.StudentID,
		"section":     st.Section,
		"teacherId":   st.TeacherID,
		"teacherName": teacherName,
		"createdAt":   st.CreatedAt,
	})
	if err != nil {
		return Student{}, fmt.Errorf("add student: %w", err)
	}
	st.ID = id
	return st, nil
}

// List returns every student owned by the teacher.
func (s *Service) List(ctx context.Context, teacherID string) ([]Student, error) {
	docs, err := s.docs.Query(ctx, store.CollectionStudents,
		[]store.Filter{{Field: "teacherId", Value: teacherID}},
		&store.Order{Field: "createdAt"},
	)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	students := make([]Student, 0, len(docs))
	for _, doc := range docs {
		students = append(students, studentFromDocument(doc))
	}
	return students, nil
}

// Remove deletes a student document, but only when the teacher owns it.
func (s *Service) Remove(ctx context.Context, teacherID, id string) error {
	doc, err := s.docs.Get(ctx, store.CollectionStudents, id)
	if err != nil {
		return err
	}
	if doc.String("teacherId") != teacherID {
		return errors.New("student not in this teacher's roster")
	}
	return s.docs.Delete(ctx, store.CollectionStudents, id)
}

// QRPayload renders the JSON payload for a student's QR code.
func (s *Service) QRPayload(st Student) ([]byte, error) {
	return json.Marshal(Payload{
		Name:           st.Name,
		StudentID:      st.StudentID,
		Section:        st.Section,
		OwnerTeacherID: st.TeacherID,
	})
}

func studentFromDocument(doc store.Document) Student {
	return Student{
		ID:        doc.ID,
		Name:      doc.String("name"),
		StudentID: doc.String("studentId"),
		Section:   doc.String("section"),
		TeacherID: doc.String("teacherId"),
		CreatedAt: doc.String("createdAt"),
	}
}

package roster

import (
	"context"
	"fmt"

	"classtrack/internal/store"
)

// Guard answers one question: does this student id belong to this teacher's
// roster? It trusts nothing from the scan payload beyond the id itself.
type Guard struct {
	docs store.Documents
}

// NewGuard builds the ownership check over the document store.
func NewGuard(docs store.Documents) *Guard {
	return &Guard{docs: docs}
}

// VerifyOwnership reports whether a student with the given id exists under
// the teacher. Zero matches means not owned. More than one match means the
// roster holds duplicate entries for the pair; that still counts as owned.
// A store failure fails closed: not verified, with the error returned so the
// caller can tell "denied" from "could not check".
func (g *Guard) VerifyOwnership(ctx context.Context, studentID, teacherID string) (bool, error) {
	if studentID == "" || teacherID == "" {
		return false, nil
	}
	docs, err := g.docs.Query(ctx, store.CollectionStudents, []store.Filter{
		{Field: "studentId", Value: studentID},
		{Field: "teacherId", Value: teacherID},
	}, nil)
	if err != nil {
		return false, fmt.Errorf("verify ownership: %w", err)
	}
	return len(docs) >= 1, nil
}

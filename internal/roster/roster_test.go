package roster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classtrack/internal/store"
)

func TestAddListRemove(t *testing.T) {
	docs := store.NewMemoryDocuments()
	svc := NewService(docs)
	ctx := context.Background()

	st, err := svc.Add(ctx, "T1", "Jane Cruz", "  Maria Santos ", " LRN001 ", " A1 ")
	require.NoError(t, err)
	assert.Equal(t, "Maria Santos", st.Name)
	assert.Equal(t, "LRN001", st.StudentID)
	assert.Equal(t, "A1", st.Section)
	assert.Equal(t, "T1", st.TeacherID)

	_, err = svc.Add(ctx, "T2", "", "Other Kid", "LRN002", "B2")
	require.NoError(t, err)

	list, err := svc.List(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, st.ID, list[0].ID)

	// another teacher cannot remove T1's student
	err = svc.Remove(ctx, "T2", st.ID)
	assert.Error(t, err)

	require.NoError(t, svc.Remove(ctx, "T1", st.ID))
	list, err = svc.List(ctx, "T1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAddRejectsBlankFields(t *testing.T) {
	svc := NewService(store.NewMemoryDocuments())
	_, err := svc.Add(context.Background(), "T1", "", "  ", "LRN001", "A1")
	assert.Error(t, err)
}

func TestQRPayloadRoundTrip(t *testing.T) {
	svc := NewService(store.NewMemoryDocuments())
	raw, err := svc.QRPayload(Student{
		Name:      "Maria Santos",
		StudentID: "LRN001",
		Section:   "A1",
		TeacherID: "T1",
	})
	require.NoError(t, err)

	p, err := ParsePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, "Maria Santos", p.Name)
	assert.Equal(t, "LRN001", p.StudentID)
	assert.Equal(t, "A1", p.Section)
	assert.Equal(t, "T1", p.OwnerTeacherID)
}

func TestParsePayloadRejectsGarbage(t *testing.T) {
	cases := [][]byte{
		[]byte("not json at all"),
		[]byte(`"just a string"`),
		[]byte(`{"name":"x"}`), // no student id
		[]byte(``),
		[]byte(`[1,2,3]`),
	}
	for _, raw := range cases {
		_, err := ParsePayload(raw)
		assert.ErrorIs(t, err, ErrUnrecognizedPayload, "payload %q", raw)
	}
}

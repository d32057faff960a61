package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/pace-notifier/internal/domain/progress"
)

func TestResolver_TableOrder(t *testing.T) {
	table := NewResolver(progress.DefaultGradeScale()).Table()
	require.Len(t, table, 2+len(progress.CurriculumItems())+1)

	tags := make([]string, len(table))
	for i, cp := range table {
		tags[i] = cp.String()
	}

	assert.Equal(t, []string{"PREREQ", "START", "USERS", "SR", "HW11", "HW12", "HW13", "HW14", "HW15", "RE1", "UE1"}, tags[:11])
	assert.Equal(t, []string{"HW45", "RE4", "UE4", "FIN", "GRADE"}, tags[len(tags)-5:])
}

// unsatisfy undoes one checkpoint on a fully satisfied snapshot.
func unsatisfy(s *progress.Snapshot, cp Checkpoint) {
	switch cp.Kind {
	case CheckpointPrereq:
		s.MetPrerequisite = false
	case CheckpointStart:
		s.Started = false
	case CheckpointGrade:
	default:
		s.Items[cp.Item] = progress.ItemState{}
	}
}

func TestResolver_ReturnsFirstUnmet(t *testing.T) {
	r := NewResolver(progress.DefaultGradeScale())
	table := r.Table()
	h := history()

	for k, target := range table[:len(table)-1] {
		t.Run(target.String(), func(t *testing.T) {
			s := newSnapshot(termStart)
			passThrough(&s, progress.Final)
			s.TotalScore = 65
			unsatisfy(&s, target)

			got, ok := r.Resolve(s, h)
			require.True(t, ok)
			assert.Equal(t, target, got)

			// Later gaps never hide an earlier one.
			for _, later := range table[k+1 : len(table)-1] {
				unsatisfy(&s, later)
			}
			got, ok = r.Resolve(s, h)
			require.True(t, ok)
			assert.Equal(t, target, got)
		})
	}
}

func TestResolver_GradeCheckpoint(t *testing.T) {
	r := NewResolver(progress.DefaultGradeScale())

	s := newSnapshot(termStart)
	passThrough(&s, progress.Final)
	s.TotalScore = 58
	s.MaxPossibleScore = 60

	cp, ok := r.Resolve(s, history())
	require.True(t, ok)
	assert.Equal(t, CheckpointGrade, cp.Kind)
	assert.Equal(t, "GRADE", cp.String())

	_, ok = r.Resolve(s, history(GRDCok02))
	assert.False(t, ok, "grade message already sent")
}

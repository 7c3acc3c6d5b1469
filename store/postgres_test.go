package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maastricht-university/interview-coach/orchestrator"
)

type fakeExec struct {
	sql  []string
	args [][]any
	err  error
}

func (f *fakeExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestSaveInsertsOneRow(t *testing.T) {
	t.Parallel()

	db := &fakeExec{}
	r := &PostgresReporter{db: db}
	stopped := time.Now()
	res := orchestrator.FinalResult{
		SessionID: "int-7",
		Aggregate: orchestrator.NewAggregate(80, 70),
		QuestionAnalyses: []orchestrator.QuestionAnalysis{
			{QuestionID: "q1", Transcript: "answer", VoiceToneScore: 70, BodyLanguageScore: 80},
		},
		StartedAt: stopped.Add(-time.Minute),
		StoppedAt: stopped,
	}

	require.NoError(t, r.Save(context.Background(), res))
	require.Len(t, db.args, 1)
	args := db.args[0]
	require.Len(t, args, 8)
	assert.Equal(t, "int-7", args[0])
	assert.Equal(t, 74.0, args[5])
	assert.Equal(t, orchestrator.StatusConfident, args[6])

	var qs []orchestrator.QuestionAnalysis
	require.NoError(t, json.Unmarshal(args[7].([]byte), &qs))
	assert.Equal(t, res.QuestionAnalyses, qs)
}

func TestSaveEncodesEmptyQuestionsAsArray(t *testing.T) {
	t.Parallel()

	db := &fakeExec{}
	r := &PostgresReporter{db: db}
	require.NoError(t, r.Save(context.Background(), orchestrator.FinalResult{SessionID: "s"}))
	assert.Equal(t, "[]", string(db.args[0][7].([]byte)))
}

func TestSaveWrapsErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	r := &PostgresReporter{db: &fakeExec{err: boom}}
	err := r.Save(context.Background(), orchestrator.FinalResult{SessionID: "s"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "s")

	assert.ErrorIs(t, r.Migrate(context.Background()), boom)
}

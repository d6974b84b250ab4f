package dataexplorer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/okian/soprofile/pkg/metrics"
)

// Spec names a stored Data Explorer query and the path that runs it.
type Spec struct {
	Name string
	Path string
}

// Query pairs a Spec with a decoder for its rows.
type Query[T any] struct {
	Spec
	Decode func(Row) (T, error)
}

// UserScore is a TopUsersByTag row.
type UserScore struct {
	UserID int64
	Score  int
}

// ScoreCount is a ScoreAmountsByTag row: Amount users scored Score.
type ScoreCount struct {
	Score  int
	Amount int
}

// TopUsersByTag ranks a tag's users by score. Rows look like [{"id": 7}, 42].
var TopUsersByTag = Query[UserScore]{
	Spec: Spec{Name: "top_users_by_tag", Path: "/query/run/1/1629390/1986822"},
	Decode: func(r Row) (UserScore, error) {
		if len(r) < 2 {
			return UserScore{}, fmt.Errorf("%w: %d cells", errUnexpectedRow, len(r))
		}
		var user struct {
			ID json.Number `json:"id"`
		}
		if err := json.Unmarshal(r[0], &user); err != nil {
			return UserScore{}, fmt.Errorf("user cell: %w", err)
		}
		id, err := toInt(user.ID)
		if err != nil {
			return UserScore{}, fmt.Errorf("user id: %w", err)
		}
		score, err := decodeInt(r[1])
		if err != nil {
			return UserScore{}, fmt.Errorf("score cell: %w", err)
		}
		return UserScore{UserID: id, Score: int(score)}, nil
	},
}

// ScoreAmountsByTag counts a tag's users per score. Rows look like [score, amount].
var ScoreAmountsByTag = Query[ScoreCount]{
	Spec: Spec{Name: "score_amounts_by_tag", Path: "/query/run/1/1631574/1989329"},
	Decode: func(r Row) (ScoreCount, error) {
		if len(r) < 2 {
			return ScoreCount{}, fmt.Errorf("%w: %d cells", errUnexpectedRow, len(r))
		}
		score, err := decodeInt(r[0])
		if err != nil {
			return ScoreCount{}, fmt.Errorf("score cell: %w", err)
		}
		amount, err := decodeInt(r[1])
		if err != nil {
			return ScoreCount{}, fmt.Errorf("amount cell: %w", err)
		}
		return ScoreCount{Score: int(score), Amount: int(amount)}, nil
	},
}

// Fetch runs q for tag and decodes its rows. ok is false with a nil error
// when ctx was cancelled before the job finished.
func Fetch[T any](ctx context.Context, c *Client, q Query[T], tag string) ([]T, bool, error) {
	job, err := c.Start(ctx, q.Spec, tag)
	if err != nil {
		return nil, false, err
	}
	rows, ok, err := job.Await(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}

	out := make([]T, 0, len(rows))
	for i, r := range rows {
		v, err := q.Decode(r)
		if err != nil {
			metrics.RecordJobFailure(q.Name, "decode")
			return nil, false, &PollError{Query: q.Name, JobID: job.ID, Err: fmt.Errorf("row %d: %w", i, err)}
		}
		out = append(out, v)
	}
	return out, true, nil
}

func decodeInt(raw json.RawMessage) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return toInt(n)
}

// toInt accepts integral floats like 42.0, which the Data Explorer emits for
// aggregated columns.
func toInt(n json.Number) (int64, error) {
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %s is not an integer", errUnexpectedRow, n)
	}
	return int64(f), nil
}

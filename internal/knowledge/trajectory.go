package knowledge

import (
	"fmt"
	"strings"
)

// ComplexityBucketWidth is the bucket width used to key FixTrajectory rows.
const ComplexityBucketWidth = 3

func ComplexityBucket(complexity int) int {
	return complexity / ComplexityBucketWidth
}

// Trajectory is the in-memory view of one (category, complexity bucket,
// tool path) row's running-average outcome.
type Trajectory struct {
	ErrorCategory    string
	ComplexityBucket int
	ToolPath         []string
	Success          bool
	TotalCost        float64
	LatencyMs        float64
	Reward           float64
	OccurrenceCount  int
}

func encodeToolPath(tools []string) string { return strings.Join(tools, ",") }
func decodeToolPath(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// RecordTrajectory merges one observed trajectory into its row via running
// averages weighted by occurrenceCount.
func (s *Store) RecordTrajectory(t Trajectory) error {
	key := encodeToolPath(t.ToolPath)
	var oldCost, oldLatency, oldReward float64
	var oldN int
	var oldSuccess int
	row := s.db.QueryRow(`
		SELECT total_cost, latency_ms, reward, occurrence_count, success
		FROM fix_trajectory WHERE error_category = ? AND complexity_bucket = ? AND tool_path = ?
	`, t.ErrorCategory, t.ComplexityBucket, key)
	err := row.Scan(&oldCost, &oldLatency, &oldReward, &oldN, &oldSuccess)
	if err != nil {
		successInt := 0
		if t.Success {
			successInt = 1
		}
		_, err = s.db.Exec(`
			INSERT INTO fix_trajectory (error_category, complexity_bucket, tool_path, success, total_cost, latency_ms, reward, occurrence_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		`, t.ErrorCategory, t.ComplexityBucket, key, successInt, t.TotalCost, t.LatencyMs, t.Reward)
		if err != nil {
			return fmt.Errorf("knowledge: insert trajectory: %w", err)
		}
		return nil
	}

	newN := oldN + 1
	newCost := (oldCost*float64(oldN) + t.TotalCost) / float64(newN)
	newLatency := (oldLatency*float64(oldN) + t.LatencyMs) / float64(newN)
	newReward := (oldReward*float64(oldN) + t.Reward) / float64(newN)
	// success is sticky: a row is "successful" if any merged occurrence succeeded,
	// so findOptimalPath can still surface a trajectory that works sometimes.
	newSuccess := oldSuccess
	if t.Success {
		newSuccess = 1
	}

	_, err = s.db.Exec(`
		UPDATE fix_trajectory
		SET total_cost = ?, latency_ms = ?, reward = ?, occurrence_count = ?, success = ?
		WHERE error_category = ? AND complexity_bucket = ? AND tool_path = ?
	`, newCost, newLatency, newReward, newN, newSuccess, t.ErrorCategory, t.ComplexityBucket, key)
	if err != nil {
		return fmt.Errorf("knowledge: update trajectory: %w", err)
	}
	return nil
}

// FindOptimalPath returns the tool path of the highest-reward successful
// trajectory whose complexity bucket matches. Ties break
// by lower average cost, then by fewer tools.
func (s *Store) FindOptimalPath(category string, complexity int) ([]string, error) {
	bucket := ComplexityBucket(complexity)
	rows, err := s.db.Query(`
		SELECT tool_path, total_cost, reward
		FROM fix_trajectory
		WHERE error_category = ? AND complexity_bucket = ? AND success = 1
	`, category, bucket)
	if err != nil {
		return nil, fmt.Errorf("knowledge: find optimal path: %w", err)
	}
	defer rows.Close()

	type candidate struct {
		path   []string
		cost   float64
		reward float64
	}
	var best *candidate
	for rows.Next() {
		var toolPath string
		var cost, reward float64
		if err := rows.Scan(&toolPath, &cost, &reward); err != nil {
			return nil, err
		}
		c := candidate{path: decodeToolPath(toolPath), cost: cost, reward: reward}
		if best == nil || better(c, *best) {
			cc := c
			best = &cc
		}
	}
	if best == nil {
		return nil, nil
	}
	return best.path, nil
}

func better(a, b struct {
	path   []string
	cost   float64
	reward float64
}) bool {
	if a.reward != b.reward {
		return a.reward > b.reward
	}
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	return len(a.path) < len(b.path)
}

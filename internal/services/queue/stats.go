package queue

import "fmt"

// JobStats counts how consumed messages ended.
type JobStats struct {
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Requeued  int64 `json:"requeued"`
	Rejected  int64 `json:"rejected"`
}

func (q *QueueService) JobStats() JobStats {
	return JobStats{
		Completed: q.completed.Load(),
		Failed:    q.failed.Load(),
		Requeued:  q.requeued.Load(),
		Rejected:  q.rejected.Load(),
	}
}

// GetQueueStats merges broker-side counts with the jobs handled here.
func (q *QueueService) GetQueueStats() (map[string]interface{}, error) {
	if q.channel == nil {
		return nil, fmt.Errorf("queue channel not available")
	}

	queueInfo, err := q.channel.QueueInspect(q.queueName)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect queue %s: %w", q.queueName, err)
	}

	return map[string]interface{}{
		"name":      queueInfo.Name,
		"pending":   queueInfo.Messages,
		"consumers": queueInfo.Consumers,
		"jobs":      q.JobStats(),
	}, nil
}

// HealthCheck checks if RabbitMQ is available
func (q *QueueService) HealthCheck() string {
	switch {
	case q.conn == nil || q.conn.IsClosed():
		return "unhealthy: connection closed"
	case q.channel == nil:
		return "unhealthy: channel not available"
	}
	return "healthy"
}

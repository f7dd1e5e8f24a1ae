package queue

import "fmt"

func JobKey(id string) string {
	return fmt.Sprintf("job:%s", id)
}

func PendingKey(queue string) string {
	return fmt.Sprintf("queue:%s:pending", queue)
}

func ProcessingKey(queue string) string {
	return fmt.Sprintf("queue:%s:processing", queue)
}

func RateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:%s", client)
}

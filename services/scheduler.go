// services/scheduler.go
package services

import (
	"log"
	"time"

	"team-tournament-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartPollScheduler closes expired polls once a minute, so late votes
// can never change a pool after its tournament has started.
func (s *PollService) StartPollScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			res := s.DB.Model(&models.Poll{}).
				Where("status = ? AND closes_at <= ?", models.PollStatusOpen, time.Now()).
				Update("status", models.PollStatusClosed)
			if res.Error != nil {
				log.Printf("[Scheduler] DB error closing polls: %v", res.Error)
				return
			}
			if res.RowsAffected > 0 {
				log.Printf("[Scheduler] closed %d expired poll(s)", res.RowsAffected)
			}
		}),
	)
}

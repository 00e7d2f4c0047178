package expiry

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StartDaily wires the expiration run to a cron trigger. The trigger only
// supplies the clock tick; all decisions live in ExpireStale, which is just
// as happy being called synchronously from the admin endpoint.
func (s *Service) StartDaily(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := s.ExpireStale(time.Now().UTC()); err != nil {
			// ExpireStale already raised the alert; this is the operator line.
			s.Log.Error("scheduled expiration run failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	s.Log.Info("expiration scheduler started", zap.String("cron", spec))
	return c, nil
}

package monitor

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/gfiorelli/plantwatch/internal/model"
	"github.com/gfiorelli/plantwatch/pkg/eventhub"
)

// Connect starts the connection sequence: Disconnected -> Connecting ->
// Connected, with up to MaxAttempts tries separated by capped exponential
// backoff. It blocks through the first attempt and returns; retries run on
// the scheduler. Re-invoking after Failed resets the attempt counter.
func (s *Service) Connect() {
	s.mu.Lock()
	switch s.state {
	case model.StateConnecting, model.StateReconnecting, model.StateConnected:
		s.mu.Unlock()
		return
	}
	s.attempts = 0
	s.localClose = false
	s.bo = s.newBackoff()
	s.setStateLocked(model.StateConnecting)
	s.mu.Unlock()
	s.attempt()
}

// Close tears the link down locally. No reconnection follows.
func (s *Service) Close() {
	s.mu.Lock()
	s.localClose = true
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	s.setStateLocked(model.StateDisconnected)
	s.mu.Unlock()
	s.tr.Disconnect()
	s.publish(eventhub.ConnectionEvent{Status: model.ConnectionStatus{Connected: false}})
}

// newBackoff builds the jitter-free schedule
// min(BaseDelay * 1.5^(n-1), CapDelay).
func (s *Service) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.BaseDelay
	bo.Multiplier = 1.5
	bo.MaxInterval = s.cfg.CapDelay
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// attempt runs one connect try. The context deadline is the per-attempt
// watchdog: it forces a failure outcome when no success signal arrives in
// time, and is released the moment the attempt resolves.
func (s *Service) attempt() {
	s.mu.Lock()
	if s.localClose {
		s.mu.Unlock()
		return
	}
	s.retry = nil
	s.attempts++
	attempt := s.attempts
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ConnectAttempts.Inc()
	}
	s.logger.Info().Int("attempt", attempt).Str("endpoint", s.cfg.Endpoint).Msg("connecting to gateway")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ConnectTimeout)
	err := s.tr.Connect(ctx)
	cancel()

	if err != nil {
		s.attemptFailed(attempt, err)
		return
	}
	s.attemptSucceeded()
}

func (s *Service) attemptFailed(attempt int, err error) {
	s.mu.Lock()
	if s.localClose {
		s.mu.Unlock()
		return
	}
	delay := s.bo.NextBackOff()
	if attempt >= s.cfg.MaxAttempts {
		s.setStateLocked(model.StateFailed)
		s.mu.Unlock()
		s.logger.Error().Err(err).Int("attempts", attempt).Msg("gateway connection attempts exhausted")
		s.publish(eventhub.ErrorEvent{
			Message: "gateway connection failed",
			Details: fmt.Sprintf("gave up after %d attempts to %s: %v", attempt, s.cfg.Endpoint, err),
		})
		return
	}
	s.setStateLocked(model.StateReconnecting)
	s.retry = s.sched.After(delay, s.attempt)
	s.mu.Unlock()
	s.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("gateway connect failed")
}

func (s *Service) attemptSucceeded() {
	s.mu.Lock()
	s.attempts = 0
	s.bo.Reset()
	s.everConnected = true
	s.setStateLocked(model.StateConnected)
	s.mu.Unlock()

	s.publish(eventhub.ConnectionEvent{Status: model.ConnectionStatus{Connected: true}})
	s.alert("success", "Connected to garden gateway")
	s.requestSnapshot()
}

// requestSnapshot asks the gateway for the full initial state.
func (s *Service) requestSnapshot() {
	payload := map[string]any{
		"plantType": s.combiner.Plant(),
		"deviceIds": s.reg.Devices(),
	}
	if err := s.tr.Emit(evRequestInitialData, payload); err != nil {
		s.logger.Warn().Err(err).Msg("requestInitialData emit failed")
	}
}

// onRemoteDisconnect handles a server-side close or transport error while
// connected: it is treated as a connection error and starts the
// reconnection sequence. Locally initiated closes never land here.
func (s *Service) onRemoteDisconnect(payload []byte) {
	s.mu.Lock()
	if s.localClose || s.state != model.StateConnected {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(model.StateReconnecting)
	delay := s.bo.NextBackOff()
	s.retry = s.sched.After(delay, s.attempt)
	s.mu.Unlock()

	s.logger.Warn().Str("reason", string(payload)).Dur("retry_in", delay).Msg("gateway closed the connection")
	s.publish(eventhub.ConnectionEvent{Status: model.ConnectionStatus{Connected: false}})
	s.alert("warning", "Lost connection to garden gateway")
}

func (s *Service) setStateLocked(st model.ConnectionState) {
	if s.state == st {
		return
	}
	s.logger.Debug().Str("from", s.state.String()).Str("to", st.String()).Msg("connection state")
	s.state = st
	if s.metrics != nil {
		s.metrics.ConnectionState.Set(float64(st))
	}
}

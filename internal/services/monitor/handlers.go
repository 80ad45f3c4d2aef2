package monitor

import (
	"encoding/json"
	"time"

	"github.com/gfiorelli/plantwatch/internal/model"
	"github.com/gfiorelli/plantwatch/internal/normalize"
	"github.com/gfiorelli/plantwatch/pkg/eventhub"
	"github.com/gfiorelli/plantwatch/pkg/transport"
)

func (s *Service) attachHandlers() {
	s.tr.On(evInitData, s.onInitData)
	s.tr.On(evDataUpdate, s.onDataUpdate)
	s.tr.On(evReservoirUpdate, s.onReservoirUpdate)
	s.tr.On(evControlResponse, s.onControlResponse)
	s.tr.On(evCommandIssued, s.onCommandIssued)
	s.tr.On(evCommandTimeout, s.onCommandTimeout)
	s.tr.On(evReconnect, s.onReconnectInfo)
	s.tr.On(transport.EventDisconnect, s.onRemoteDisconnect)
}

type initDataPayload struct {
	Sensors   map[string]map[string]any   `json:"sensors"`
	Reservoir map[string]any              `json:"reservoir"`
	States    map[string]bool             `json:"states"`
	History   map[string][]model.RawPoint `json:"history"`
}

// onInitData applies the full gateway snapshot: per-device sensor payloads,
// reservoir levels, actuator states and the retained raw history.
func (s *Service) onInitData(payload []byte) {
	var snap initDataPayload
	if err := json.Unmarshal(payload, &snap); err != nil {
		s.logger.Warn().Err(err).Msg("malformed initData payload")
		return
	}

	now := s.now().UTC()
	for deviceID, raw := range snap.Sensors {
		s.applyReading(normalize.Reading(raw, deviceID, now))
	}
	if snap.Reservoir != nil {
		s.applyReservoir(normalize.Reservoir(snap.Reservoir))
	}
	if snap.States != nil && s.actuators != nil {
		s.actuators.SetSnapshot(snap.States["watering"], snap.States["light"])
	}
	for slot, points := range snap.History {
		p := model.PlantSlot(slot)
		if !p.Valid() {
			continue
		}
		s.mu.Lock()
		ser := s.series[p]
		s.mu.Unlock()
		ser.Seed(points)
	}
	s.logger.Info().Int("devices", len(snap.Sensors)).Msg("initial snapshot applied")
}

type dataUpdatePayload struct {
	DeviceID  string         `json:"deviceId"`
	Data      map[string]any `json:"data"`
	PlantType string         `json:"plantType"`
}

// onDataUpdate applies one live device sample. Redeliveries of the same
// payload are dropped so the current-reading cache stays deduplicated;
// readings are otherwise applied in arrival order, even when their embedded
// timestamps are out of order.
func (s *Service) onDataUpdate(payload []byte) {
	if !s.dedupe.Fresh(payload) {
		s.logger.Debug().Msg("duplicate dataUpdate dropped")
		return
	}
	var upd dataUpdatePayload
	if err := json.Unmarshal(payload, &upd); err != nil {
		s.logger.Warn().Err(err).Msg("malformed dataUpdate payload")
		return
	}
	if upd.DeviceID == "" {
		s.logger.Warn().Msg("dataUpdate without deviceId, skipping")
		return
	}
	s.applyReading(normalize.Reading(upd.Data, upd.DeviceID, s.now().UTC()))
}

// applyReading runs one normalized reading through the combiner, refreshes
// the current cache, publishes the fused reading, and feeds the moisture
// sample into the slot's historical series.
func (s *Service) applyReading(r model.SensorReading) {
	if s.metrics != nil {
		s.metrics.Readings.WithLabelValues(r.DeviceID).Inc()
	}
	cr, ok := s.combiner.Update(r)
	if ok {
		s.setCurrent(cr)
		s.publish(eventhub.DataEvent{Reading: cr})
	}
	if slot, ok := s.reg.SlotOf(r.DeviceID); ok {
		s.mu.Lock()
		ser := s.series[slot]
		s.mu.Unlock()
		ser.Append(model.RawPoint{
			Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
			Value:     r.Moisture,
		})
	}
}

func (s *Service) onReservoirUpdate(payload []byte) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		s.logger.Warn().Err(err).Msg("malformed reservoirUpdate payload")
		return
	}
	s.applyReservoir(normalize.Reservoir(raw))
}

func (s *Service) applyReservoir(levels model.ReservoirLevels) {
	s.mu.Lock()
	s.reservoir = levels
	s.hasReservoir = true
	s.mu.Unlock()
	s.publish(eventhub.ReservoirEvent{Levels: levels})
}

type controlResponsePayload struct {
	Action  string `json:"action"`
	Active  bool   `json:"active"`
	Success bool   `json:"success"`
}

func (s *Service) onControlResponse(payload []byte) {
	var resp controlResponsePayload
	if err := json.Unmarshal(payload, &resp); err != nil {
		s.logger.Warn().Err(err).Msg("malformed controlResponse payload")
		return
	}
	if s.actuators != nil {
		s.actuators.ApplyControlResponse(resp.Action, resp.Active, resp.Success)
	}
}

type commandIssuedPayload struct {
	Command string `json:"command"`
	Value   bool   `json:"value"`
}

func (s *Service) onCommandIssued(payload []byte) {
	var cmd commandIssuedPayload
	if err := json.Unmarshal(payload, &cmd); err != nil {
		s.logger.Warn().Err(err).Msg("malformed commandIssued payload")
		return
	}
	if s.actuators != nil {
		s.actuators.HandleCommandIssued(cmd.Command, cmd.Value)
	}
}

func (s *Service) onCommandTimeout(payload []byte) {
	var cmd struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		s.logger.Warn().Err(err).Msg("malformed commandTimeout payload")
		return
	}
	if s.actuators != nil {
		s.actuators.HandleCommandTimeout(cmd.Command)
	}
}

func (s *Service) onReconnectInfo(payload []byte) {
	var info struct {
		Attempt int `json:"attempt"`
	}
	_ = json.Unmarshal(payload, &info)
	s.logger.Info().Int("attempt", info.Attempt).Msg("gateway reports reconnect")
}

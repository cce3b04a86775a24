// Package control turns external commands into engine state transitions
// and persists the resulting settings.
//
// The two axes are independent: enabling converts the document, disabling
// reverts it, and switching the rounding mode reconverts only while enabled.
package control

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/tsawler/metricate/engine"
	"github.com/tsawler/metricate/rounding"
	"github.com/tsawler/metricate/settings"
)

// Surface dispatches commands to one engine. It is not safe for concurrent
// use.
type Surface struct {
	eng    *engine.Engine
	store  settings.Store
	logger *slog.Logger
}

// New returns a surface for eng. A nil store keeps settings in memory.
func New(eng *engine.Engine, store settings.Store, logger *slog.Logger) *Surface {
	if store == nil {
		store = settings.NewMemory(settings.Default())
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Surface{
		eng:    eng,
		store:  store,
		logger: logger.With(slog.String("component", "control")),
	}
}

// Settings reports the engine's current state as settings.
func (s *Surface) Settings() settings.Settings {
	st := s.eng.State()
	return settings.Settings{Enabled: st.Enabled, SmartRounding: st.Mode == rounding.Smart}
}

// Load reads the stored settings once and brings the engine and document in
// line with them: the document is converted when enabled and left as is
// otherwise.
func (s *Surface) Load(ctx context.Context) (engine.Result, error) {
	st, err := s.store.Load(ctx)
	if err != nil {
		return engine.Result{}, fmt.Errorf("load settings: %w", err)
	}
	var res engine.Result
	add := func(r engine.Result) {
		res.Converted += r.Converted
		res.Reverted += r.Reverted
		res.Leaves += r.Leaves
		res.Warnings = append(res.Warnings, r.Warnings...)
	}
	if s.eng.State().Enabled {
		add(s.eng.SetEnabled(false))
	}
	add(s.eng.SetMode(rounding.ModeFor(st.SmartRounding)))
	if st.Enabled {
		add(s.eng.SetEnabled(true))
	}
	s.logger.Info("settings loaded",
		slog.Bool("enabled", st.Enabled),
		slog.Bool("smart_rounding", st.SmartRounding),
		slog.Int("converted", res.Converted))
	return res, nil
}

// Handle runs one command.
func (s *Surface) Handle(ctx context.Context, cmd Command) Response {
	switch cmd.Action {
	case ActionToggle:
		return s.apply(ctx, cmd.Patch)
	case ActionEnable:
		return s.apply(ctx, settings.Patch{Enabled: settings.Bool(true)})
	case ActionDisable:
		return s.apply(ctx, settings.Patch{Enabled: settings.Bool(false)})
	case ActionSetRoundingMode:
		if cmd.Patch.SmartRounding == nil {
			return failure(fmt.Errorf("%w: %s requires settings.%s", ErrInvalidSetting, cmd.Action, settings.KeySmartRounding))
		}
		return s.apply(ctx, settings.Patch{SmartRounding: cmd.Patch.SmartRounding})
	case ActionConvert, ActionRescan:
		res := s.eng.ConvertAll()
		return s.applied(res)
	case ActionAppend:
		return s.append(cmd.HTML)
	case ActionStatus:
		return s.applied(engine.Result{})
	default:
		err := fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Action)
		s.logger.Warn("rejected command", slog.String("error", err.Error()))
		return Response{Success: false, Error: fmt.Sprintf("unknown action %q", cmd.Action)}
	}
}

// HandleJSON decodes a wire command, runs it and encodes the response.
func (s *Surface) HandleJSON(ctx context.Context, data []byte) []byte {
	cmd, invalid, err := Decode(data)
	if err != nil {
		return failure(err).Encode()
	}
	for _, e := range invalid {
		s.logger.Debug("ignored setting", slog.String("error", e.Error()))
	}
	resp := s.Handle(ctx, cmd)
	for _, e := range invalid {
		resp.Warnings = append(resp.Warnings, e.Error())
	}
	return resp.Encode()
}

// apply changes state from a patch. A disable is applied before a mode
// change and an enable after it, so each command converts at most once.
func (s *Surface) apply(ctx context.Context, p settings.Patch) Response {
	before := s.Settings()
	var res engine.Result
	add := func(r engine.Result) {
		res.Converted += r.Converted
		res.Reverted += r.Reverted
		res.Warnings = append(res.Warnings, r.Warnings...)
	}

	disabling := p.Enabled != nil && !*p.Enabled
	if disabling {
		add(s.eng.SetEnabled(false))
	}
	if p.SmartRounding != nil {
		add(s.eng.SetMode(rounding.ModeFor(*p.SmartRounding)))
	}
	if p.Enabled != nil && *p.Enabled {
		add(s.eng.SetEnabled(true))
	}

	after := s.Settings()
	resp := Response{
		Success:     true,
		NewSettings: &after,
		Converted:   res.Converted,
		Reverted:    res.Reverted,
		Warnings:    warningStrings(res.Warnings),
	}
	if after == before {
		return resp
	}
	s.logger.Info("settings changed",
		slog.Bool("enabled", after.Enabled),
		slog.Bool("smart_rounding", after.SmartRounding),
		slog.Int("converted", res.Converted),
		slog.Int("reverted", res.Reverted))

	if err := s.store.Save(ctx, after); err != nil {
		s.logger.Warn("failed to save settings", slog.String("error", err.Error()))
		resp.Success = false
		resp.Error = fmt.Sprintf("save settings: %v", err)
	}
	return resp
}

func (s *Surface) append(fragment string) Response {
	doc := s.eng.Document()
	body := doc.Body()
	nodes, err := doc.ParseFragment(fragment)
	if err != nil {
		return failure(fmt.Errorf("parse fragment: %w", err))
	}
	for _, n := range nodes {
		if err := doc.AppendChild(body, n); err != nil {
			return failure(fmt.Errorf("append fragment: %w", err))
		}
	}
	s.logger.Debug("appended fragment", slog.Int("nodes", len(nodes)))
	return s.applied(engine.Result{})
}

func (s *Surface) applied(res engine.Result) Response {
	cur := s.Settings()
	return Response{
		Success:         true,
		AppliedSettings: &cur,
		Converted:       res.Converted,
		Reverted:        res.Reverted,
		Warnings:        warningStrings(res.Warnings),
	}
}

func failure(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

func warningStrings(ws []engine.Warning) []string {
	if len(ws) == 0 {
		return nil
	}
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.String()
	}
	return out
}

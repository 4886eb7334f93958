// Package daemon serves governance evaluations over a unix socket so
// editor integrations and CI agents can query contract status without
// spawning a process per check.
package daemon

import (
	"context"
	"encoding/json"
	"net"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/rideflow/apigovern/internal/engine"
	"github.com/rideflow/apigovern/internal/history"
	"github.com/rideflow/apigovern/internal/logger"
	"github.com/rideflow/apigovern/internal/policy"
	"github.com/rideflow/apigovern/internal/report"
)

var log = logger.ForComponent("daemon")

type CheckParams struct {
	State string `json:"state"`
}

type ViolationPayload struct {
	Kind   string `json:"kind"`
	Method string `json:"method,omitempty"`
	Path   string `json:"path,omitempty"`
	Reason string `json:"reason"`
}

type CheckReply struct {
	Passed     bool               `json:"passed"`
	Violations []ViolationPayload `json:"violations"`
	Skipped    []string           `json:"skipped,omitempty"`
}

type StatusParams struct {
	Limit int `json:"limit,omitempty"`
}

type RunPayload struct {
	ID         string `json:"id"`
	Command    string `json:"command"`
	State      string `json:"state,omitempty"`
	Violations int    `json:"violations"`
	Passed     bool   `json:"passed"`
	Skipped    bool   `json:"skipped"`
	StartedAt  string `json:"started_at"`
}

type Server struct {
	eng      *engine.Engine
	runs     *history.Store
	listener *SocketListener
}

// New wires an evaluation engine and, optionally, the run-history store
// (nil disables the status method's history).
func New(eng *engine.Engine, runs *history.Store, socketPath string) *Server {
	return &Server{
		eng:      eng,
		runs:     runs,
		listener: NewSocketListener(socketPath),
	}
}

// Serve accepts connections until the context is cancelled. Each connection
// speaks JSON-RPC 2.0; evaluations are read-only so concurrent clients are
// safe.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.listener.Start(); err != nil {
		return err
	}
	defer s.listener.Close()

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	log.Info("daemon listening")
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	stream := jsonrpc2.NewBufferedStream(conn, jsonrpc2.VSCodeObjectCodec{})
	rpc := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))
	<-rpc.DisconnectNotify()
}

func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	switch req.Method {
	case "governance/check":
		return s.handleCheck(req)
	case "governance/status":
		return s.handleStatus(req)
	default:
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "unknown method " + req.Method}
	}
}

func (s *Server) handleCheck(req *jsonrpc2.Request) (any, error) {
	var params CheckParams
	if req.Params != nil {
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
		}
	}
	state, err := policy.ParseReleaseState(params.State)
	if err != nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}

	results, err := s.eng.Evaluate(state)
	if err != nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
	}

	reply := CheckReply{Passed: true, Violations: []ViolationPayload{}}
	for _, res := range results {
		if res.Skipped {
			reply.Skipped = append(reply.Skipped, res.Check)
			continue
		}
		if len(res.Violations) > 0 {
			reply.Passed = false
		}
		violations := append([]report.Violation(nil), res.Violations...)
		report.Sort(violations)
		for _, v := range violations {
			reply.Violations = append(reply.Violations, ViolationPayload{
				Kind:   string(v.Kind),
				Method: v.Method,
				Path:   v.Path,
				Reason: v.Reason,
			})
		}
	}
	return reply, nil
}

func (s *Server) handleStatus(req *jsonrpc2.Request) (any, error) {
	var params StatusParams
	if req.Params != nil {
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
		}
	}
	if s.runs == nil {
		return []RunPayload{}, nil
	}
	runs, err := s.runs.Recent(params.Limit)
	if err != nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
	}
	payload := make([]RunPayload, 0, len(runs))
	for _, run := range runs {
		payload = append(payload, RunPayload{
			ID:         run.ID,
			Command:    run.Command,
			State:      run.State,
			Violations: run.Violations,
			Passed:     run.Passed,
			Skipped:    run.Skipped,
			StartedAt:  run.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return payload, nil
}

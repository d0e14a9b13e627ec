package logging

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// =============================================================================
// AUDIT EVENTS - each event is also rendered as a Mangle fact so an audit log
// can be loaded back and queried declaratively.
// =============================================================================

// AuditEventType defines the type of audit event (maps to Mangle predicate)
type AuditEventType string

const (
	AuditEvalStart     AuditEventType = "eval_start"    // eval_start(Session, Rules, Facts)
	AuditEvalComplete  AuditEventType = "eval_complete" // eval_complete(Session, Derived, Strata, Rounds, DurationMs)
	AuditEvalRejected  AuditEventType = "eval_rejected" // eval_rejected(Session, Reason)
	AuditEvalAborted   AuditEventType = "eval_aborted"  // eval_aborted(Session, Stratum, Outcome, Reason)
	AuditInconsistency AuditEventType = "inconsistency" // inconsistency(Session, Rule)
	AuditIngest        AuditEventType = "ingest"        // ingest(Session, Source, Added, Diagnostics)
	AuditRulesLoaded   AuditEventType = "rules_loaded"  // rules_loaded(Session, Source, Rules, Diagnostics)
)

// AuditEvent is one audit record.
type AuditEvent struct {
	Type      AuditEventType
	SessionID string
	Args      []interface{}
	Timestamp time.Time
}

// AuditLogger writes audit events for one session.
type AuditLogger struct {
	sessionID string
}

// Audit returns an audit logger bound to sessionID.
func Audit(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID}
}

// Log writes event to the audit category. A nil AuditLogger discards it.
func (a *AuditLogger) Log(event AuditEvent) {
	if a == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.SessionID == "" {
		event.SessionID = a.sessionID
	}
	Get(CategoryAudit).Structured(zapcore.InfoLevel, string(event.Type),
		zap.String("session", event.SessionID),
		zap.Time("at", event.Timestamp),
		zap.String("fact", MangleFact(event)),
	)
}

// MangleFact renders event as a Mangle fact, session first.
func MangleFact(e AuditEvent) string {
	args := make([]string, 0, len(e.Args)+1)
	args = append(args, strconv.Quote(e.SessionID))
	for _, arg := range e.Args {
		switch v := arg.(type) {
		case string:
			args = append(args, strconv.Quote(v))
		case int:
			args = append(args, strconv.Itoa(v))
		case int64:
			args = append(args, strconv.FormatInt(v, 10))
		case time.Duration:
			args = append(args, strconv.FormatInt(v.Milliseconds(), 10))
		case bool:
			if v {
				args = append(args, "/true")
			} else {
				args = append(args, "/false")
			}
		default:
			args = append(args, strconv.Quote(fmt.Sprint(v)))
		}
	}
	return fmt.Sprintf("%s(%s).", e.Type, strings.Join(args, ", "))
}

// EvalStart records the beginning of an evaluation pass.
func (a *AuditLogger) EvalStart(rules, facts int) {
	a.Log(AuditEvent{Type: AuditEvalStart, Args: []interface{}{rules, facts}})
}

// EvalComplete records a finished evaluation pass.
func (a *AuditLogger) EvalComplete(derived, strata, rounds int, d time.Duration) {
	a.Log(AuditEvent{Type: AuditEvalComplete, Args: []interface{}{derived, strata, rounds, d}})
}

// EvalRejected records a pass refused at load time.
func (a *AuditLogger) EvalRejected(reason string) {
	a.Log(AuditEvent{Type: AuditEvalRejected, Args: []interface{}{reason}})
}

// EvalAborted records a pass that stopped partway, after facts were
// written. outcome is "limit" when the fact limit was hit.
func (a *AuditLogger) EvalAborted(stratum int, outcome, reason string) {
	a.Log(AuditEvent{Type: AuditEvalAborted, Args: []interface{}{stratum, outcome, reason}})
}

// Inconsistency records a fired contradiction rule.
func (a *AuditLogger) Inconsistency(rule string) {
	a.Log(AuditEvent{Type: AuditInconsistency, Args: []interface{}{rule}})
}

// Ingest records a loaded fact source.
func (a *AuditLogger) Ingest(source string, added, diagnostics int) {
	a.Log(AuditEvent{Type: AuditIngest, Args: []interface{}{source, added, diagnostics}})
}

// RulesLoaded records a loaded rule source.
func (a *AuditLogger) RulesLoaded(source string, rules, diagnostics int) {
	a.Log(AuditEvent{Type: AuditRulesLoaded, Args: []interface{}{source, rules, diagnostics}})
}

// Package mq implements outbound message batching with merge-based
// deduplication, broker publishing, and application-level consumer retry on
// top of an AMQP topic exchange.
package mq

import (
	"encoding/json"
	"fmt"
	"time"

	"tally/pkg/domainerrors"
)

const (
	// DefaultAttempts is the retry allowance a message carries unless the
	// producer says otherwise.
	DefaultAttempts = 3
	// DefaultRetryDelaySeconds is the reschedule delay between attempts.
	DefaultRetryDelaySeconds = 3
	// UnlimitedAttempts never exhausts: the consumer reschedules forever.
	UnlimitedAttempts = -1
)

// Message is the mergeable envelope delivered to the broker. The wire form
// is camelCase JSON. Data is an ordered sequence of payload items for
// batched messages; object-shaped data is legal on the wire but cannot be
// merged.
type Message struct {
	TraceID          string     `json:"traceId"`
	FunctionName     string     `json:"functionName"`
	Data             any        `json:"data"`
	Started          *time.Time `json:"started"`
	AttemptNumber    int        `json:"attemptNumber"`
	RetryDelaySecond int        `json:"retryDelaySecond"`
}

// NewMessage builds a batched message with default retry settings.
func NewMessage(traceID, functionName string, data []any) *Message {
	return &Message{
		TraceID:          traceID,
		FunctionName:     functionName,
		Data:             data,
		AttemptNumber:    DefaultAttempts,
		RetryDelaySecond: DefaultRetryDelaySeconds,
	}
}

// Merge folds o into m. Two messages are mergeable iff their trace id and
// function name match and both carry ordered-sequence data; the result is
// the concatenation in call order. Merging object-shaped data is
// deliberately unsupported and fails loudly.
func (m *Message) Merge(o *Message) error {
	if o.TraceID != m.TraceID {
		return domainerrors.New(domainerrors.CodeInvalidState, "merge: trace id must match")
	}
	if o.FunctionName != m.FunctionName {
		return domainerrors.New(domainerrors.CodeInvalidState, "merge: function name must match")
	}
	own, ok := asSequence(m.Data)
	if !ok {
		return domainerrors.Newf(domainerrors.CodeInvalidState, "merge: data of %T is not supported", m.Data)
	}
	other, ok := asSequence(o.Data)
	if !ok {
		return domainerrors.Newf(domainerrors.CodeInvalidState, "merge: data of %T is not supported", o.Data)
	}
	m.Data = append(own, other...)
	return nil
}

func asSequence(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// key identifies a merge bucket within one routing key.
func (m *Message) key() string {
	return fmt.Sprintf("%s_%s", m.TraceID, m.FunctionName)
}

// Payload serializes the wire envelope.
func (m *Message) Payload() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "serialize message")
	}
	return b, nil
}

// DecodeMessage parses a wire envelope, applying the retry defaults for
// fields the producer omitted.
func DecodeMessage(body []byte) (*Message, error) {
	raw := struct {
		TraceID          string     `json:"traceId"`
		FunctionName     string     `json:"functionName"`
		Data             any        `json:"data"`
		Started          *time.Time `json:"started"`
		AttemptNumber    *int       `json:"attemptNumber"`
		RetryDelaySecond *int       `json:"retryDelaySecond"`
	}{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "decode message")
	}
	m := &Message{
		TraceID:          raw.TraceID,
		FunctionName:     raw.FunctionName,
		Data:             raw.Data,
		Started:          raw.Started,
		AttemptNumber:    DefaultAttempts,
		RetryDelaySecond: DefaultRetryDelaySeconds,
	}
	if raw.AttemptNumber != nil {
		m.AttemptNumber = *raw.AttemptNumber
	}
	if raw.RetryDelaySecond != nil {
		m.RetryDelaySecond = *raw.RetryDelaySecond
	}
	return m, nil
}

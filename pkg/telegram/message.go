package telegram

import (
	"fmt"
	"strings"
)

// MessageBuilder assembles plain-text notification bodies.
type MessageBuilder struct {
	sb strings.Builder
}

func NewMessage(title string) *MessageBuilder {
	m := &MessageBuilder{}
	m.sb.WriteString(title)
	m.sb.WriteString("\n")
	return m
}

func (m *MessageBuilder) Line(format string, args ...interface{}) *MessageBuilder {
	fmt.Fprintf(&m.sb, format, args...)
	m.sb.WriteString("\n")
	return m
}

func (m *MessageBuilder) KV(key string, value interface{}) *MessageBuilder {
	fmt.Fprintf(&m.sb, "- %s: %v\n", key, value)
	return m
}

func (m *MessageBuilder) String() string {
	return strings.TrimRight(m.sb.String(), "\n")
}

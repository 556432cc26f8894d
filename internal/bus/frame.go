package bus

import (
	"bytes"
	"fmt"
	"strings"
)

// Terminator is the reserved byte that ends every topic. It never appears
// inside a topic name, which makes prefix subscriptions exact in practice:
// "metrics$" can never match a frame published under "metrics_extended$".
const Terminator = '$'

// MakeTopic appends the terminator to a topic name, rejecting names that
// already contain the reserved byte.
func MakeTopic(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("topic name cannot be empty")
	}
	if strings.ContainsRune(name, Terminator) {
		return "", fmt.Errorf("topic name %q contains reserved terminator %q", name, Terminator)
	}
	return name + string(Terminator), nil
}

// ValidTopic reports whether a topic is non-empty, ends with the
// terminator, and contains it nowhere else.
func ValidTopic(topic string) bool {
	if len(topic) < 2 || topic[len(topic)-1] != Terminator {
		return false
	}
	return !strings.ContainsRune(topic[:len(topic)-1], Terminator)
}

// EncodeFrame packs a topic and payload into a single wire frame. The topic
// terminator doubles as the separator, mirroring the [topic, payload]
// multipart layout of the upstream transport.
func EncodeFrame(topic string, payload []byte) []byte {
	frame := make([]byte, 0, len(topic)+len(payload))
	frame = append(frame, topic...)
	frame = append(frame, payload...)
	return frame
}

// SplitFrame separates a wire frame into its topic and payload.
func SplitFrame(frame []byte) (topic string, payload []byte, err error) {
	idx := bytes.IndexByte(frame, Terminator)
	if idx < 0 {
		return "", nil, fmt.Errorf("frame has no topic terminator")
	}
	return string(frame[:idx+1]), frame[idx+1:], nil
}

// Subscription control opcodes, sent by subscribers on the backend side.
// Layout matches the upstream transport: opcode byte followed by the topic.
const (
	opUnsubscribe byte = 0x00
	opSubscribe   byte = 0x01
)

func encodeControl(op byte, topic string) []byte {
	frame := make([]byte, 0, 1+len(topic))
	frame = append(frame, op)
	frame = append(frame, topic...)
	return frame
}

func decodeControl(data []byte) (subscribe bool, topic string, err error) {
	if len(data) < 2 {
		return false, "", fmt.Errorf("control frame too short")
	}
	switch data[0] {
	case opSubscribe:
		return true, string(data[1:]), nil
	case opUnsubscribe:
		return false, string(data[1:]), nil
	default:
		return false, "", fmt.Errorf("unknown control opcode 0x%02x", data[0])
	}
}

package domain

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// EncodeSnapshot serializes the collection in stored order.
func EncodeSnapshot(tasks []Task) ([]byte, error) {
	if tasks == nil {
		tasks = []Task{}
	}
	return sonic.Marshal(tasks)
}

// DecodeSnapshot parses a collection written by EncodeSnapshot.
func DecodeSnapshot(data []byte) ([]Task, error) {
	var tasks []Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("decode task snapshot: %w", err)
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return tasks, nil
}

package settings

import (
	"encoding/json"
	"sync"
)

type MemoryStore struct {
	mutex  sync.Mutex
	values map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (s *MemoryStore) Load(key string, v interface{}) (bool, error) {
	s.mutex.Lock()
	data, ok := s.values[key]
	s.mutex.Unlock()

	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, v)
}

func (s *MemoryStore) Save(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.values[key] = data
	return nil
}

// Len returns how many keys currently hold a value.
func (s *MemoryStore) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.values)
}

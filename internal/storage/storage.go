package storage

import "praxos/internal/model"

// Storage defines a sink for decoded vault events.
type Storage interface {
	PutEventBatch(events []model.VaultEvent) error
}

// Multi writes every batch to each sink in order, stopping at the first failure.
type Multi []Storage

func (m Multi) PutEventBatch(events []model.VaultEvent) error {
	for _, s := range m {
		if err := s.PutEventBatch(events); err != nil {
			return err
		}
	}
	return nil
}

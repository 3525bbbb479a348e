// Package repository defines the persistence ports of the batch engine. The engine only
// depends on these interfaces; implementations live under infrastructure/repository.
package repository

// JobRepository is the interface for persisting and managing batch execution metadata.
// It embeds the smaller repository interfaces to separate concerns.
type JobRepository interface {
	JobInstance
	JobExecution
	StepExecution

	// Close releases resources (such as database connections) used by the repository.
	Close() error
}

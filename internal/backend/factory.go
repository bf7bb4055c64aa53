package backend

import (
	"context"
	"fmt"

	"chronoly/internal/amqp"
	"chronoly/internal/log"
	"chronoly/internal/sheets"
	gsheet "chronoly/internal/sheets/google"
	sheetsmem "chronoly/internal/sheets/memory"
	"chronoly/internal/storage"
	"chronoly/internal/store"
	"chronoly/internal/store/file"
	"chronoly/internal/store/kv"
	"chronoly/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	st, err := f.openStore(config)
	if err != nil {
		return nil, err
	}

	// AMQP is optional; the store is usable without it.
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change events", "error", err)
			amqpClient = nil
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.InfoContext(ctx, "Initialized backend",
		"type", config.Type.String(),
		"amqp_enabled", amqpClient != nil)

	return &BackendResult{
		Store:     st,
		Publisher: amqpClient,
		Cleanup: func() error {
			var firstErr error
			if amqpClient != nil {
				firstErr = amqpClient.Close()
			}
			if err := st.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			return firstErr
		},
	}, nil
}

func (f *DefaultFactory) openStore(config Config) (store.EntityStore, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Opened SQLite store", "db_path", config.SQLiteDBPath)
		return repo, nil

	case BadgerBackend:
		s, err := kv.Open(kv.Options{Path: config.BadgerPath, InMemory: config.BadgerInMemory})
		if err != nil {
			return nil, fmt.Errorf("failed to open Badger store: %w", err)
		}
		f.logger.Info("Opened Badger store", "path", config.BadgerPath, "in_memory", config.BadgerInMemory)
		return s, nil

	case FileBackend:
		s, err := file.Open(config.DataFilePath, config.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to open encrypted file store: %w", err)
		}
		f.logger.Info("Opened encrypted file store", "path", config.DataFilePath)
		return s, nil

	case MemoryBackend:
		s, err := memory.NewFromFile(config.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load seed file: %w", err)
		}
		f.logger.Info("Opened memory store", "seed_file", config.SeedFile)
		return s, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// CreateExporter implements Factory.CreateExporter
func (f *DefaultFactory) CreateExporter(ctx context.Context, config Config) (sheets.TotalsExporter, error) {
	if config.GoogleSpreadsheetID == "" {
		f.logger.InfoContext(ctx, "No spreadsheet configured, keeping weekly totals in memory")
		return sheetsmem.New(), nil
	}

	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleCredentialsJSON,
		CredentialsFile: config.GoogleCredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized Google Sheets exporter",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)
	return cli, nil
}

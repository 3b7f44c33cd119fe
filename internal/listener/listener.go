package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"otpgate/internal/config"
	"otpgate/internal/pipeline"
	"otpgate/internal/receivers"
	gmailreceiver "otpgate/internal/receivers/gmail"
	imapreceiver "otpgate/internal/receivers/imap"
	"otpgate/internal/storage"
)

// Service polls a gateway inbox on an interval, processes everything it
// stored, and optionally refreshes the audit report.
type Service struct {
	db  *storage.DB
	cfg config.Config
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg}
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(ctx); err != nil {
			fmt.Printf("listener cycle error: %v\n", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.ListenerIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.ListenerProvider))
	receiver, err := s.makeReceiver(provider)
	if err != nil {
		return err
	}

	fetchService := receivers.NewFetchService(s.db, s.cfg.RawMsgDir, receiver)
	fetchResult, err := fetchService.FetchAndStore(s.cfg.ListenerLabel, s.cfg.ListenerFetchMax)
	if err != nil {
		return err
	}

	processor, err := pipeline.NewProcessingService(s.db, s.cfg)
	if err != nil {
		return err
	}
	processed, found, err := processor.ProcessPending(s.cfg.ListenerProcessBatch, provider)
	if err != nil {
		return err
	}

	if s.cfg.ListenerAutoExport && processed > 0 {
		if err := s.exportAudit(); err != nil {
			return err
		}
	}

	_ = s.db.SetMetadata("lastCycleAt", time.Now().UTC().Format(time.RFC3339))
	fmt.Printf("listener cycle done provider=%s fetched=%d stored=%d processed=%d found=%d\n",
		provider, fetchResult.Fetched, fetchResult.Stored, processed, found)
	_ = ctx
	return nil
}

func (s *Service) exportAudit() error {
	rows, err := s.db.GetAuditRows(500)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	outputPath := filepath.Join(s.cfg.OutputDir, "listener", "audit.xlsx")
	return pipeline.ExportAuditToXLSX(rows, outputPath)
}

func (s *Service) makeReceiver(provider string) (receivers.Receiver, error) {
	switch provider {
	case "gmail":
		return gmailreceiver.NewReceiver(s.cfg)
	case "imap":
		return imapreceiver.NewReceiver(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}

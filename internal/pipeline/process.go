package pipeline

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"otpgate/internal"
	"otpgate/internal/apphash"
	"otpgate/internal/config"
	"otpgate/internal/otp"
	"otpgate/internal/storage"
)

// NewExtractorFromConfig builds the extractor the deployment is
// configured for: code length from the env, rules from the optional
// rules file, built-ins otherwise.
func NewExtractorFromConfig(cfg config.Config) (*otp.Extractor, error) {
	extractorCfg := otp.Config{CodeLength: cfg.CodeLength}
	if cfg.RulesFile != "" {
		rules, err := otp.LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		extractorCfg.Rules = rules
	}
	return otp.NewExtractor(extractorCfg)
}

// ResolveAppHash returns the app-identity token messages are expected
// to carry: the literal env value wins, otherwise it is derived from
// package name + certificate hash. Empty when scoping is disabled.
func ResolveAppHash(cfg config.Config) (string, error) {
	if cfg.AppHash != "" {
		return cfg.AppHash, nil
	}
	if cfg.AppPackage != "" || cfg.AppCertHash != "" {
		return apphash.Compute(cfg.AppPackage, cfg.AppCertHash)
	}
	return "", nil
}

type ProcessingService struct {
	db        *storage.DB
	extractor *otp.Extractor
	appHash   string
}

func NewProcessingService(db *storage.DB, cfg config.Config) (*ProcessingService, error) {
	extractor, err := NewExtractorFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	hash, err := ResolveAppHash(cfg)
	if err != nil {
		return nil, err
	}
	return &ProcessingService{db: db, extractor: extractor, appHash: hash}, nil
}

type ProcessResult struct {
	MessageID int
	Status    internal.MessageStatus
	Code      string
	Rule      string
}

func (s *ProcessingService) ProcessByProviderMessageID(provider, messageID string) (ProcessResult, error) {
	msg, err := s.db.GetMessageByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	if msg == nil {
		return ProcessResult{}, fmt.Errorf("no message for provider=%s messageId=%s", provider, messageID)
	}
	return s.ProcessMessage(*msg)
}

func (s *ProcessingService) ProcessPending(limit int, provider string) (int, int, error) {
	pending, err := s.db.ListMessagesByStatus(string(internal.StatusReceived), limit)
	if err != nil {
		return 0, 0, err
	}

	processed := 0
	found := 0
	for _, msg := range pending {
		if provider != "" && msg.Provider != provider {
			continue
		}
		res, err := s.ProcessMessage(msg)
		if err != nil {
			return processed, found, err
		}
		processed++
		if res.Code != "" {
			found++
		}
	}
	return processed, found, nil
}

func (s *ProcessingService) ProcessMessage(msg internal.MessageRow) (ProcessResult, error) {
	start := time.Now()
	body, err := os.ReadFile(msg.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	if err := s.db.ClearMessageProcessing(msg.ID); err != nil {
		return ProcessResult{}, err
	}

	// With an app hash configured, messages lacking the token are not
	// for this application and never reach the extractor.
	if s.appHash != "" && !apphash.Contains(string(body), s.appHash) {
		if err := s.db.UpdateMessageStatus(msg.ID, string(internal.StatusSkipped)); err != nil {
			return ProcessResult{}, err
		}
		_ = s.db.InsertRun(traceID(), msg.ID, timings(start), map[string]int{"found": 0, "notFound": 0, "skipped": 1})
		return ProcessResult{MessageID: msg.ID, Status: internal.StatusSkipped}, nil
	}

	row := internal.ExtractionRow{Status: internal.ExtractionNotFound}
	result := ProcessResult{MessageID: msg.ID, Status: internal.StatusProcessed}
	counts := map[string]int{"found": 0, "notFound": 1, "skipped": 0}

	if res, err := s.extractor.Extract(string(body)); err == nil {
		row.Status = internal.ExtractionFound
		row.Code = &res.Code
		row.Rule = &res.Rule
		result.Code = res.Code
		result.Rule = res.Rule
		counts["found"], counts["notFound"] = 1, 0
	}
	row.ElapsedMs = float64(time.Since(start).Microseconds()) / 1000

	if _, err := s.db.InsertExtraction(msg.ID, row); err != nil {
		return ProcessResult{}, err
	}
	if err := s.db.UpdateMessageStatus(msg.ID, string(internal.StatusProcessed)); err != nil {
		return ProcessResult{}, err
	}
	_ = s.db.InsertRun(traceID(), msg.ID, timings(start), counts)

	return result, nil
}

// Extractor exposes the configured engine for callers that need direct
// extraction (listen sessions, one-shot CLI).
func (s *ProcessingService) Extractor() *otp.Extractor {
	return s.extractor
}

func timings(start time.Time) map[string]float64 {
	return map[string]float64{"totalMs": float64(time.Since(start).Microseconds()) / 1000}
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

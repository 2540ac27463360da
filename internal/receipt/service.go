package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"sync"

	"github.com/google/uuid"

	"github.com/mmynk/billparty/internal/models"
)

// BillImageStore is the slice of party persistence the service needs.
type BillImageStore interface {
	AddBillImage(ctx context.Context, image *models.BillImage) error
}

// Service orchestrates a receipt upload: store the object, then record the
// bill image and run OCR analysis concurrently, joining both before
// returning.
type Service struct {
	objects   ObjectStorage
	analyzer  Analyzer
	bills     BillImageStore
	keyPrefix string
	logger    *slog.Logger
}

// NewService creates a receipt service.
func NewService(objects ObjectStorage, analyzer Analyzer, bills BillImageStore, keyPrefix string, logger *slog.Logger) *Service {
	return &Service{
		objects:   objects,
		analyzer:  analyzer,
		bills:     bills,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

// Upload stores the receipt image, records it against the party, and runs
// OCR extraction. The record write and the analysis run concurrently once
// the object exists; an error from either fails the upload.
func (s *Service) Upload(ctx context.Context, partyID, fileName string, data []byte) (*models.BillImage, *Receipt, error) {
	key := s.storageKey(partyID, fileName)
	contentType := mime.TypeByExtension(path.Ext(fileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	url, err := s.objects.Put(ctx, key, data, contentType)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to store receipt: %w", err)
	}
	s.logger.Info("receipt stored", "party_id", partyID, "key", key)

	image := &models.BillImage{
		ID:        uuid.New().String(),
		FileTitle: fileName,
		PartyID:   partyID,
		ImageURL:  url,
	}

	var (
		wg        sync.WaitGroup
		recordErr error
		ocrErr    error
		extracted *Receipt
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		recordErr = s.bills.AddBillImage(ctx, image)
	}()
	go func() {
		defer wg.Done()
		extracted, ocrErr = s.analyzer.Analyze(ctx, url)
	}()
	wg.Wait()

	if recordErr != nil {
		return nil, nil, fmt.Errorf("failed to record bill image: %w", recordErr)
	}
	if ocrErr != nil {
		return nil, nil, fmt.Errorf("failed to analyze receipt: %w", ocrErr)
	}

	return image, extracted, nil
}

// storageKey builds the object key: prefix, party, random element, original
// extension.
func (s *Service) storageKey(partyID, fileName string) string {
	return path.Join(s.keyPrefix, partyID, uuid.New().String()+path.Ext(fileName))
}

package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"partsledger/backend/internal/domain"
	"partsledger/backend/internal/importer"
	"partsledger/backend/internal/store"
)

func (s *Service) ListParts(ctx context.Context) ([]domain.Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts, err := s.loadParts(ctx)
	if err != nil {
		return nil, s.storageFailure("list parts", err)
	}
	return parts, nil
}

// ImportParts merges a parsed sheet into stock. A row whose number and
// price match an existing part adds to its quantity; other rows insert.
// Rows the parser rejected are reported but never block the batch.
func (s *Service) ImportParts(ctx context.Context, batch importer.Batch) (domain.ImportResult, error) {
	result := domain.ImportResult{Skipped: batch.Skipped, Problems: batch.Problems}
	if len(batch.Rows) == 0 {
		err := fmt.Errorf("no importable rows (%d skipped): %w", batch.Skipped, domain.ErrInvalidInput)
		result.Result = failure(err)
		return result, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parts, err := s.loadParts(ctx)
	if err != nil {
		err = s.storageFailure("import parts", err)
		result.Result = failure(err)
		return result, err
	}

	ix := s.index(parts)
	for _, row := range batch.Rows {
		created := ix.Upsert(domain.Part{
			Number:        row.Number,
			Name:          row.Name,
			AlternateName: row.AlternateName,
			Manufacturer:  row.Company,
			Price:         row.Price,
			Quantity:      row.Quantity,
			Category:      row.Category,
			Shelf:         row.Shelf,
		})
		if created {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	st := s.begin()
	stage(st, store.Parts, ix.Parts())
	if err := s.commit(ctx, "import parts", st); err != nil {
		result.Inserted, result.Updated = 0, 0
		result.Result = failure(err)
		return result, err
	}

	s.logger.Info("parts imported",
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
	)
	result.Result = domain.Succeeded(fmt.Sprintf("Imported %d new and %d existing part(s); %d row(s) skipped.", result.Inserted, result.Updated, result.Skipped))
	return result, nil
}

func (s *Service) RemovePart(ctx context.Context, key domain.PartKey) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts, err := s.loadParts(ctx)
	if err != nil {
		err = s.storageFailure("remove part", err)
		return failure(err), err
	}

	ix := s.index(parts)
	if !ix.Remove(key) {
		err := fmt.Errorf("part %s at %s %w", key.Number, key.Price, domain.ErrNotFound)
		return failure(err), err
	}

	st := s.begin()
	stage(st, store.Parts, ix.Parts())
	if err := s.commit(ctx, "remove part", st); err != nil {
		return failure(err), err
	}
	s.logger.Info("part removed", zap.String("part_number", key.Number), zap.String("price", key.Price))
	return domain.Succeeded(fmt.Sprintf("Part %s at %s removed.", key.Number, key.Price)), nil
}

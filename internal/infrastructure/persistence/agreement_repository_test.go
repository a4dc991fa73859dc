package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rfa/backend/internal/domain/rebate"
	"github.com/rfa/backend/internal/domain/shared"
)

func TestGormAgreementRepository_FindActiveForPair(t *testing.T) {
	t.Run("returns the active agreement for the pair", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormAgreementRepository(db)

		tenantID := uuid.New()
		labID := uuid.New()
		agreementID := uuid.New()

		rows := sqlmock.NewRows([]string{"id", "tenant_id", "laboratory_id", "name", "start_date", "status", "target_rate_b", "agreement_version", "version"}).
			AddRow(agreementID, tenantID, labID, "Accord 2026",
				time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "active",
				decimal.RequireFromString("15"), 1, 2)

		mock.ExpectQuery(`SELECT \* FROM "laboratory_agreements" WHERE tenant_id = \$1 AND laboratory_id = \$2 AND status = \$3 ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, labID, "active", 1).
			WillReturnRows(rows)

		agreement, err := repo.FindActiveForPair(context.Background(), tenantID, labID)

		assert.NoError(t, err)
		require.NotNil(t, agreement)
		assert.Equal(t, agreementID, agreement.ID)
		assert.Equal(t, rebate.AgreementStatusActive, agreement.Status)
		assert.True(t, agreement.TargetRateB.Equal(decimal.RequireFromString("15")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps missing agreement to domain not-found", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormAgreementRepository(db)

		tenantID := uuid.New()
		labID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "laboratory_agreements" WHERE tenant_id = \$1 AND laboratory_id = \$2 AND status = \$3 ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, labID, "active", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		agreement, err := repo.FindActiveForPair(context.Background(), tenantID, labID)

		assert.Nil(t, agreement)
		assert.True(t, shared.IsNotFound(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormAgreementRepository_SaveWithLock(t *testing.T) {
	t.Run("reports a conflict when the row moved past the loaded version", func(t *testing.T) {
		db, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormAgreementRepository(db)

		tenantID := uuid.New()
		agreement, err := rebate.NewLaboratoryAgreement(tenantID, uuid.New(), "Accord 2026",
			time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		require.NoError(t, agreement.Activate())

		mock.ExpectExec(`UPDATE "laboratory_agreements" SET .+ WHERE tenant_id = \$\d+ AND id = \$\d+ AND version < \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.SaveWithLock(context.Background(), agreement)

		assert.Equal(t, shared.ErrConcurrencyConflict, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

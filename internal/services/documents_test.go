package services

import (
	"bytes"
	"context"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/internal/storage"
)

func TestExportService_SalesWorkbook(t *testing.T) {
	loans := []models.Loan{{
		ID:                 7,
		TotalPurchasePrice: decimal.NewFromInt(24000),
		DownPayment:        decimal.NewFromInt(4000),
		AmountFinanced:     decimal.NewFromInt(20000),
		InstallmentAmount:  decimal.RequireFromString("833.33"),
		TermMonths:         24,
		Status:             models.LoanStatusActive,
		CreatedAt:          time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		Customer:           models.User{FirstName: "Ana", LastName: "Lopez"},
		Vehicle:            models.Vehicle{ID: 3, Year: 2022, Make: "Honda", Model: "Accord"},
	}}

	data, name, err := NewExportService().SalesWorkbook(loans, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "sales_2026-02-01.xlsx", name)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sales")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, salesHeaders, rows[0])
	assert.Equal(t, "7", rows[1][0])
	assert.Equal(t, "Ana Lopez", rows[1][1])
	assert.Equal(t, "2022 Honda Accord", rows[1][2])
	assert.Equal(t, "2026-01-15 10:30", rows[1][9])
}

func TestExportService_OverdueWorkbookEmpty(t *testing.T) {
	data, name, err := NewExportService().OverdueWorkbook(nil, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "overdue_2026-02-01.xlsx", name)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Overdue")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, overdueHeaders, rows[0])
}

func TestStatementService_LoanStatement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewStatementService(f.repos)

	data, name, err := svc.LoanStatement(ctx, f.loan.ID, f.customer.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.True(t, strings.HasSuffix(name, ".pdf"))

	// admins pass customerID 0
	_, _, err = svc.LoanStatement(ctx, f.loan.ID, 0)
	assert.NoError(t, err)

	_, _, err = svc.LoanStatement(ctx, f.loan.ID, f.customer.ID+100)
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, err = svc.LoanStatement(ctx, f.loan.ID+100, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImageService_ProcessProfilePicture(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	svc := NewImageService(store)

	var src bytes.Buffer
	require.NoError(t, imaging.Encode(&src, imaging.New(800, 400, color.NRGBA{R: 200, A: 255}), imaging.PNG))

	url, err := svc.ProcessProfilePicture(context.Background(), 5, "me.PNG", &src)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, storage.PublicPrefix+"/5/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	stored := filepath.Join(dir, strings.TrimPrefix(url, storage.PublicPrefix+"/"))
	raw, err := os.ReadFile(stored)
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, profilePicSize, img.Bounds().Dx())
	assert.Equal(t, profilePicSize, img.Bounds().Dy())

	_, err = svc.ProcessProfilePicture(context.Background(), 5, "me.gif", strings.NewReader("GIF89a"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.ProcessProfilePicture(context.Background(), 5, "me.jpg", strings.NewReader("not an image"))
	assert.ErrorIs(t, err, ErrValidation)
}

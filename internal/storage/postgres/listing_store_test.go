package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

func TestRecordListingInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewListingStoreWithPool(mock, "")
	require.NoError(t, err)

	listing := crawler.JobListing{
		Company:        "Acme",
		Title:          "Software Intern",
		NormalizedLink: "https://acme.test/jobs/42",
		MatchedKeyword: "intern",
		Location:       "Remote",
	}
	mock.ExpectExec(`(?s)INSERT INTO jobs .* ON CONFLICT \(company, link\) DO NOTHING`).
		WithArgs("Acme", "Software Intern", "https://acme.test/jobs/42", "intern", "Remote").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.RecordListing(context.Background(), listing))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordListingWrapsErrors(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewListingStoreWithPool(mock, "listings")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO listings").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err = store.RecordListing(context.Background(), crawler.JobListing{Company: "Acme"})
	require.ErrorContains(t, err, "insert listing: connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCompanyReturnsRowCount(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewListingStoreWithPool(mock, "jobs")
	require.NoError(t, err)

	mock.ExpectExec(`DELETE FROM jobs WHERE company = \$1`).
		WithArgs("Acme").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	removed, err := store.DeleteCompany(context.Background(), "Acme")
	require.NoError(t, err)
	require.Equal(t, 3, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewListingStoreWithPool(mock, "jobs")
	require.NoError(t, err)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS jobs`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableNameValidation(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewListingStoreWithPool(mock, "jobs; DROP TABLE jobs")
	require.Error(t, err)
	_, err = NewListingStoreWithPool(nil, "jobs")
	require.Error(t, err)
	_, err = NewListingStore(context.Background(), ListingStoreConfig{})
	require.Error(t, err)
}

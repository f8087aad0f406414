package places

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("gorm open: %v", err)
	}
	return NewRepository(conn), mock
}

func TestAddMemberIssuesConditionalUpsert(t *testing.T) {
	repo, mock := newMockRepo(t)
	placeID := uuid.New()

	mock.ExpectExec(`INSERT INTO place_members \(place_id, token\) SELECT \$1, \$2 WHERE EXISTS \(SELECT 1 FROM places WHERE id = \$3\) ON CONFLICT \(place_id, token\) DO NOTHING`).
		WithArgs(placeID, "tok", placeID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.AddMember(context.Background(), placeID, "tok"); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRemoveMemberChecksPlaceOnNoop(t *testing.T) {
	repo, mock := newMockRepo(t)
	placeID := uuid.New()

	mock.ExpectExec(`DELETE FROM "place_members" WHERE place_id = \$1 AND token = \$2`).
		WithArgs(placeID, "tok").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "places" WHERE id = \$1`).
		WithArgs(placeID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	if err := repo.RemoveMember(context.Background(), placeID, "tok"); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

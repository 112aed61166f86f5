package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
)

func newChunkRepoWithMock(t *testing.T) (*ChunkRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ChunkRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestReplaceChunksDeletesThenInsertsInOneTx(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM chunks").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO chunks").
		WithArgs("doc-1", 0, "first chunk", 12, 0, 40, "Intro").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO chunks").
		WithArgs("doc-1", 1, "second chunk", 9, 40, 72, "Intro").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReplaceChunks(context.Background(), "doc-1", []domain.Chunk{
		{ChunkIndex: 0, Content: "first chunk", TokenCount: 12, StartChar: 0, EndChar: 40, Section: "Intro"},
		{ChunkIndex: 1, Content: "second chunk", TokenCount: 9, StartChar: 40, EndChar: 72, Section: "Intro"},
	})
	if err != nil {
		t.Fatalf("ReplaceChunks() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReplaceChunksRollsBackOnInsertFailure(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM chunks").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO chunks").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.ReplaceChunks(context.Background(), "doc-1", []domain.Chunk{
		{ChunkIndex: 0, Content: "first chunk", TokenCount: 12},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListByDocumentOrdersByChunkIndex(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"chunk_index", "content", "token_count", "start_char", "end_char", "section"}).
		AddRow(0, "first", 3, 0, 10, "").
		AddRow(1, "second", 4, 10, 24, "Details")
	mock.ExpectQuery("SELECT chunk_index, content, token_count").
		WithArgs("doc-1").
		WillReturnRows(rows)

	chunks, err := repo.ListByDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("ListByDocument() error = %v", err)
	}
	if len(chunks) != 2 || chunks[1].Section != "Details" || chunks[1].ChunkIndex != 1 {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deedworks/deedflow/deed"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	var s, err = Open(context.Background(), filepath.Join(t.TempDir(), "deedflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sptr(s string) *string { return &s }

func testRecord() *deed.Record {
	return &deed.Record{
		Document: deed.DocumentDetails{TransactionDate: sptr("2024-03-15")},
		Property: deed.PropertyDetails{
			SaleConsideration: sptr("4500000"),
			RegistrationFee:   sptr("45000"),
			GuidanceValue:     sptr("4500000"),
		},
		Sellers: []deed.Party{{Name: sptr("B Rao"), Share: sptr("100%")}},
		Buyers:  []deed.Party{{Name: sptr("A Kumar")}, {Name: sptr("C Kumar")}},
	}
}

func TestUpsertExtractionCommitsAllRows(t *testing.T) {
	var s = openTestStore(t)
	var ctx = context.Background()

	require.NoError(t, s.UpsertExtraction(ctx, Extraction{
		DocumentID: "deed_001",
		SourcePath: "/in/deed_001.pdf",
		BatchID:    "BATCH_X",
		FeeSource:  "text",
		Record:     testRecord(),
	}))

	counts, err := s.PartyCounts(ctx, "deed_001")
	require.NoError(t, err)
	require.Equal(t, map[string]int{RoleSeller: 1, RoleBuyer: 2}, counts)
}

func TestUpsertExtractionReplacesParties(t *testing.T) {
	var s = openTestStore(t)
	var ctx = context.Background()

	var x = Extraction{DocumentID: "deed_001", SourcePath: "/in/deed_001.pdf", Record: testRecord()}
	require.NoError(t, s.UpsertExtraction(ctx, x))

	// Rerun with a single buyer; the stale rows must be gone.
	x.Record.Buyers = x.Record.Buyers[:1]
	require.NoError(t, s.UpsertExtraction(ctx, x))

	counts, err := s.PartyCounts(ctx, "deed_001")
	require.NoError(t, err)
	require.Equal(t, map[string]int{RoleSeller: 1, RoleBuyer: 1}, counts)
}

func TestMarkDocumentFailedAndRerunList(t *testing.T) {
	var s = openTestStore(t)
	var ctx = context.Background()

	require.NoError(t, s.MarkDocumentFailed(ctx, "deed_bad", "/in/deed_bad.pdf", "BATCH_X", "ModelInvocation"))

	paths, err := s.FailedDocumentPaths(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"/in/deed_bad.pdf"}, paths)

	// A later success clears it from the rerun list.
	require.NoError(t, s.UpsertExtraction(ctx, Extraction{
		DocumentID: "deed_bad", SourcePath: "/in/deed_bad.pdf", Record: testRecord(),
	}))
	paths, err = s.FailedDocumentPaths(ctx)
	require.NoError(t, err)
	require.Empty(t, paths)
}

func TestSessionLifecycle(t *testing.T) {
	var s = openTestStore(t)
	var ctx = context.Background()

	var id = NewSessionID(time.Now())
	require.True(t, strings.HasPrefix(id, "BATCH_"))

	require.NoError(t, s.CreateSession(ctx, id, "march uploads", 10))
	require.NoError(t, s.MarkProcessing(ctx, id))
	require.NoError(t, s.MarkCompleted(ctx, id, 10, 7, 2, 1))

	sess, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	require.Equal(t, SessionCompleted, sess.Status)
	require.Equal(t, "march uploads", sess.Name)
	require.Equal(t, 10, sess.Total)
	require.Equal(t, 10, sess.Processed)
	require.Equal(t, 7, sess.Successful)
	require.Equal(t, 2, sess.Failed)
	require.Equal(t, 1, sess.Stopped)
}

func TestDuplicateDetector(t *testing.T) {
	var s = openTestStore(t)
	var ctx = context.Background()

	var det, err = NewDuplicateDetector(s, 8)
	require.NoError(t, err)

	hash, err := HashStream(strings.NewReader("the same pdf bytes"))
	require.NoError(t, err)
	again, err := HashStream(strings.NewReader("the same pdf bytes"))
	require.NoError(t, err)
	require.Equal(t, hash, again)

	other, err := HashStream(strings.NewReader("different pdf bytes"))
	require.NoError(t, err)
	require.NotEqual(t, hash, other)

	docID, err := det.Check(ctx, hash)
	require.NoError(t, err)
	require.Empty(t, docID)

	require.NoError(t, det.Record(ctx, hash, "deed_001"))
	docID, err = det.Check(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, "deed_001", docID)

	// The first document wins a racing re-record.
	require.NoError(t, det.Record(ctx, hash, "deed_002"))
	fresh, err := NewDuplicateDetector(s, 8)
	require.NoError(t, err)
	docID, err = fresh.Check(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, "deed_001", docID)
}

func TestCheckBatchPartitionsDuplicates(t *testing.T) {
	var s = openTestStore(t)
	var ctx = context.Background()

	var dir = t.TempDir()
	var write = func(name, content string) string {
		var p = filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0600))
		return p
	}
	var a = write("deed_a.pdf", "content A")
	var b = write("deed_b.pdf", "content B")
	var aCopy = write("deed_a_copy.pdf", "content A")

	det, err := NewDuplicateDetector(s, 8)
	require.NoError(t, err)

	// deed_b's content was processed in an earlier run.
	hashB, err := HashFile(b)
	require.NoError(t, err)
	require.NoError(t, det.Record(ctx, hashB, "deed_prior"))

	unique, duplicates, err := det.CheckBatch(ctx, []string{a, b, aCopy})
	require.NoError(t, err)

	require.Len(t, unique, 1)
	require.Equal(t, a, unique[0].Path)
	require.NotEmpty(t, unique[0].Hash)

	require.Equal(t, map[string]string{
		b:     "deed_prior",
		aCopy: "deed_a",
	}, duplicates)
}

func TestNotifier(t *testing.T) {
	var s = openTestStore(t)
	var ctx = context.Background()

	var n = NewNotifier(s)
	n.Emit(ctx, "BATCH_X", "deed_001", SeverityError, "extraction failed")
	n.Emit(ctx, "BATCH_X", "", SeveritySuccess, "batch complete")

	notes, err := n.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, notes, 2)
}

func TestBatchSeverity(t *testing.T) {
	require.Equal(t, SeveritySuccess, BatchSeverity(5, 0))
	require.Equal(t, SeverityWarning, BatchSeverity(3, 2))
	require.Equal(t, SeverityError, BatchSeverity(0, 5))
}

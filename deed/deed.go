// Package deed holds the data model shared by every stage of the
// extraction pipeline: input tasks, the stage-1 hand-off record, the
// structured record produced by stage-2, and terminal outcomes.
package deed

// Status is the terminal outcome of a document within a batch run.
type Status string

const (
	StatusOk      Status = "ok"
	StatusStopped Status = "stopped"
	StatusFailed  Status = "failed"
)

// Task is one document to process. Tasks are created at upload and are
// logically destroyed on a terminal stage-2 outcome.
type Task struct {
	// SourcePath locates the input PDF on disk.
	SourcePath string
	// DocumentID is derived from the filename and is stable across runs.
	DocumentID string
	// BatchID groups tasks submitted together.
	BatchID string
	// ContentHash is the content identity computed at intake, used for
	// duplicate detection and recorded on success.
	ContentHash string
}

// Batch is a set of tasks submitted together.
type Batch struct {
	ID    string
	Name  string
	Tasks []Task
}

// PageImage is one rasterized page, held as encoded PNG bytes.
// Pages are large; the bounded hand-off buffer is what keeps the
// number of resident PageImage sets under control.
type PageImage struct {
	// Number is the 1-based page number.
	Number int
	// PNG is the encoded page image.
	PNG []byte
	// Width and Height are the pixel dimensions after normalization.
	Width  int
	Height int
}

// Stage1Output is the hand-off record passed from a stage-1 worker to a
// stage-2 consumer. It is enqueued once, consumed once, then released.
type Stage1Output struct {
	DocumentID  string
	SourcePath  string
	BatchID     string
	ContentHash string
	// Pages are retained for stage-2 table-detection reuse. Empty when
	// stage-1 ran in native (embedded text) mode.
	Pages []PageImage
	// FullText is the concatenated per-page text with page separators.
	FullText string
	// FeeFromText is the registration fee found by the text heuristics,
	// or nil if none was found.
	FeeFromText *float64
	Status      Status
	Err         error
}

// Party is one buyer, seller, or confirming party of a deed.
// Absent fields are nil.
type Party struct {
	Name           *string
	Gender         *string
	FatherName     *string
	DateOfBirth    *string
	NationalID     *string
	TaxID          *string
	Address        *string
	Pincode        *string
	State          *string
	Phone          *string
	SecondaryPhone *string
	Email          *string
	// Share is the party's property share, sellers only.
	Share *string
}

// DocumentDetails are the document-level fields of a record.
type DocumentDetails struct {
	TransactionDate    *string
	RegistrationOffice *string
}

// PropertyDetails are the property-level fields of a record. Monetary
// fields are held as cleaned strings preserving integer form.
type PropertyDetails struct {
	ScheduleBArea     *float64
	ScheduleCName     *string
	ScheduleCAddress  *string
	ScheduleCArea     *float64
	Pincode           *string
	State             *string
	SaleConsideration *string
	StampDutyFee      *string
	RegistrationFee   *string
	GuidanceValue     *string
	CashPaymentMode   *string
}

// Record is the validated, structured extraction of one deed.
type Record struct {
	Document          DocumentDetails
	Property          PropertyDetails
	Sellers           []Party
	Buyers            []Party
	ConfirmingParties []Party
}

// Result is the terminal stage-2 outcome for one document.
type Result struct {
	DocumentID string
	Status     Status
	// RegistrationFee is the fee chosen by source arbitration, if any.
	RegistrationFee *float64
	// TableFound reports whether the table-detection fallback ran and
	// located a fee table.
	TableFound bool
	// Extracted reports whether the language model produced a record.
	Extracted bool
	// Saved reports whether the record was committed.
	Saved bool
	Err   error
}

// BatchSummary is returned by a full batch run once both stages have
// drained.
type BatchSummary struct {
	Total      int
	Processed  int
	Successful int
	Failed     int
	Stopped    int
	Results    []Result
}

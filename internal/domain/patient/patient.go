package patient

import (
	"strings"
	"time"
	"unicode"

	"github.com/clinic/terminal/internal/domain/shared"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Patient is a person registered at the clinic. Patients created while
// the authority is unreachable live only in the local store until the
// sync coordinator pushes them.
type Patient struct {
	shared.BaseEntity
	DocumentID string // national id / cédula
	FirstName  string
	LastName   string
	Phone      string
	Email      string
	BirthDate  *time.Time
	Sex        string
	Address    string
	BranchID   string
	SearchKey  string // diacritics-folded lookup key
	RemoteID   string // authority id once synced
	Synced     bool
}

// NewPatient registers a patient locally.
func NewPatient(documentID, firstName, lastName, branchID string) (*Patient, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" {
		return nil, shared.NewDomainError("INVALID_PATIENT", "First name is required")
	}
	if lastName == "" {
		return nil, shared.NewDomainError("INVALID_PATIENT", "Last name is required")
	}
	if branchID == "" {
		return nil, shared.NewDomainError("INVALID_PATIENT", "Branch is required")
	}

	p := &Patient{
		BaseEntity: shared.NewBaseEntity(),
		DocumentID: strings.TrimSpace(documentID),
		FirstName:  firstName,
		LastName:   lastName,
		BranchID:   branchID,
	}
	p.RefreshSearchKey()
	return p, nil
}

// FullName returns the display name.
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// RefreshSearchKey recomputes the folded lookup key after a name or
// document change.
func (p *Patient) RefreshSearchKey() {
	p.SearchKey = FoldSearchKey(p.FirstName + " " + p.LastName + " " + p.DocumentID)
}

// MarkSynced records the authority's durable id for this patient.
func (p *Patient) MarkSynced(remoteID string) {
	p.RemoteID = remoteID
	p.Synced = true
	p.Touch()
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldSearchKey lowercases and strips diacritics so offline search finds
// "Pérez" when the operator types "perez".
func FoldSearchKey(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}

package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/atlas-voyages/api/internal/domain"
	pfirestore "github.com/atlas-voyages/api/internal/platform/firestore"
	"github.com/atlas-voyages/api/internal/repositories"
)

const (
	dossiersCollection         = "dossiers"
	dossierDocumentsCollection = "documents"
)

// DossierRepository persists client dossiers and their attached documents.
type DossierRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[dossierDocument]
}

// NewDossierRepository constructs a Firestore-backed dossier repository.
func NewDossierRepository(provider *pfirestore.Provider) (*DossierRepository, error) {
	if provider == nil {
		return nil, errors.New("dossier repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[dossierDocument](provider, dossiersCollection, nil, nil)
	return &DossierRepository{provider: provider, base: base}, nil
}

// Insert stores a new dossier. The ID must be unique.
func (r *DossierRepository) Insert(ctx context.Context, dossier domain.Dossier) error {
	if r == nil || r.base == nil {
		return errors.New("dossier repository not initialised")
	}
	dossierID := strings.TrimSpace(dossier.ID)
	if dossierID == "" {
		return errors.New("dossier repository: dossier id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, dossierID)
	if err != nil {
		return err
	}
	doc := encodeDossierDocument(dossier)
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("dossiers.insert", err)
	}
	return nil
}

// Update replaces the persisted dossier with the provided snapshot.
func (r *DossierRepository) Update(ctx context.Context, dossier domain.Dossier) error {
	if r == nil || r.base == nil {
		return errors.New("dossier repository not initialised")
	}
	dossierID := strings.TrimSpace(dossier.ID)
	if dossierID == "" {
		return errors.New("dossier repository: dossier id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, dossierID)
	if err != nil {
		return err
	}
	doc := encodeDossierDocument(dossier)
	if _, err := docRef.Set(ctx, doc); err != nil {
		return pfirestore.WrapError("dossiers.update", err)
	}
	return nil
}

// FindByID fetches a single dossier.
func (r *DossierRepository) FindByID(ctx context.Context, dossierID string) (domain.Dossier, error) {
	if r == nil || r.base == nil {
		return domain.Dossier{}, errors.New("dossier repository not initialised")
	}
	dossierID = strings.TrimSpace(dossierID)
	if dossierID == "" {
		return domain.Dossier{}, errors.New("dossier repository: dossier id is required")
	}
	doc, err := r.base.Get(ctx, dossierID)
	if err != nil {
		return domain.Dossier{}, err
	}
	return decodeDossierDocument(dossierID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// List returns dossiers of the tenant ordered by most recent update.
func (r *DossierRepository) List(ctx context.Context, tenantID string, filter repositories.DossierListFilter) (domain.CursorPage[domain.Dossier], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Dossier]{}, errors.New("dossier repository not initialised")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return domain.CursorPage[domain.Dossier]{}, errors.New("dossier repository: tenant id is required")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Dossier]{}, fmt.Errorf("dossier repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	statusFilters := normaliseFilterValues(filter.Status)
	advisorID := strings.TrimSpace(filter.AdvisorID)

	var departureFrom, departureTo *time.Time
	if filter.Departure.From != nil {
		value := filter.Departure.From.UTC()
		if !value.IsZero() {
			departureFrom = &value
		}
	}
	if filter.Departure.To != nil {
		value := filter.Departure.To.UTC()
		if !value.IsZero() {
			departureTo = &value
		}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("tenantId", "==", tenantID)

		if len(statusFilters) == 1 {
			q = q.Where("status", "==", statusFilters[0])
		} else if len(statusFilters) > 1 {
			if len(statusFilters) > 10 {
				statusFilters = statusFilters[:10]
			}
			q = q.Where("status", "in", statusFilters)
		}

		if advisorID != "" {
			q = q.Where("advisorId", "==", advisorID)
		}

		if departureFrom != nil || departureTo != nil {
			if departureFrom != nil {
				q = q.Where("departureDate", ">=", *departureFrom)
			}
			if departureTo != nil {
				q = q.Where("departureDate", "<=", *departureTo)
			}
			// Range filters force ordering on the filtered field.
			q = q.OrderBy("departureDate", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)
		} else {
			q = q.OrderBy("updatedAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
			if len(startAfter) == 2 {
				q = q.StartAfter(startAfter...)
			}
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Dossier]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if departureFrom == nil && departureTo == nil && limit > 0 && len(valueDocs) == fetchLimit {
		last := valueDocs[len(valueDocs)-1]
		tokenTime := last.Data.UpdatedAt
		if tokenTime.IsZero() {
			tokenTime = last.UpdateTime
		}
		nextToken = encodeListToken(tokenTime, last.ID)
		valueDocs = valueDocs[:len(valueDocs)-1]
	}

	items := make([]domain.Dossier, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodeDossierDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}

	return domain.CursorPage[domain.Dossier]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// AppendDocument records a stored file against the dossier.
func (r *DossierRepository) AppendDocument(ctx context.Context, dossierID string, doc domain.DossierDocument) error {
	if r == nil || r.provider == nil {
		return errors.New("dossier repository not initialised")
	}
	dossierID = strings.TrimSpace(dossierID)
	if dossierID == "" {
		return errors.New("dossier repository: dossier id is required")
	}
	documentID := strings.TrimSpace(doc.ID)
	if documentID == "" {
		return errors.New("dossier repository: document id is required")
	}

	coll, err := r.documentsCollection(ctx, dossierID)
	if err != nil {
		return err
	}
	record := encodeDossierFileDocument(doc)
	if _, err := coll.Doc(documentID).Create(ctx, record); err != nil {
		return pfirestore.WrapError("dossiers.append_document", err)
	}
	return nil
}

// FindDocument fetches a single document record.
func (r *DossierRepository) FindDocument(ctx context.Context, dossierID string, documentID string) (domain.DossierDocument, error) {
	if r == nil || r.provider == nil {
		return domain.DossierDocument{}, errors.New("dossier repository not initialised")
	}
	dossierID = strings.TrimSpace(dossierID)
	documentID = strings.TrimSpace(documentID)
	if dossierID == "" || documentID == "" {
		return domain.DossierDocument{}, errors.New("dossier repository: dossier id and document id are required")
	}

	coll, err := r.documentsCollection(ctx, dossierID)
	if err != nil {
		return domain.DossierDocument{}, err
	}
	snapshot, err := coll.Doc(documentID).Get(ctx)
	if err != nil {
		return domain.DossierDocument{}, pfirestore.WrapError("dossiers.get_document", err)
	}
	var record dossierFileDocument
	if err := snapshot.DataTo(&record); err != nil {
		return domain.DossierDocument{}, fmt.Errorf("firestore dossier documents decode %s: %w", documentID, err)
	}
	return decodeDossierFileDocument(dossierID, documentID, record), nil
}

// ListDocuments returns document records ordered by upload time, newest first.
func (r *DossierRepository) ListDocuments(ctx context.Context, dossierID string) ([]domain.DossierDocument, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("dossier repository not initialised")
	}
	dossierID = strings.TrimSpace(dossierID)
	if dossierID == "" {
		return nil, errors.New("dossier repository: dossier id is required")
	}

	coll, err := r.documentsCollection(ctx, dossierID)
	if err != nil {
		return nil, err
	}
	iter := coll.OrderBy("uploadedAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var documents []domain.DossierDocument
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("dossiers.list_documents", err)
		}
		var record dossierFileDocument
		if err := snapshot.DataTo(&record); err != nil {
			return nil, fmt.Errorf("firestore dossier documents decode %s: %w", snapshot.Ref.ID, err)
		}
		documents = append(documents, decodeDossierFileDocument(dossierID, snapshot.Ref.ID, record))
	}
	return documents, nil
}

// DeleteDocument removes a document record. The stored object is cleaned up by
// the caller.
func (r *DossierRepository) DeleteDocument(ctx context.Context, dossierID string, documentID string) error {
	if r == nil || r.provider == nil {
		return errors.New("dossier repository not initialised")
	}
	dossierID = strings.TrimSpace(dossierID)
	documentID = strings.TrimSpace(documentID)
	if dossierID == "" || documentID == "" {
		return errors.New("dossier repository: dossier id and document id are required")
	}

	coll, err := r.documentsCollection(ctx, dossierID)
	if err != nil {
		return err
	}
	if _, err := coll.Doc(documentID).Delete(ctx, firestore.Exists); err != nil {
		return pfirestore.WrapError("dossiers.delete_document", err)
	}
	return nil
}

func (r *DossierRepository) documentsCollection(ctx context.Context, dossierID string) (*firestore.CollectionRef, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(dossiersCollection).Doc(dossierID).Collection(dossierDocumentsCollection), nil
}

type dossierDocument struct {
	TenantID      string     `firestore:"tenantId"`
	Reference     string     `firestore:"reference"`
	ClientName    string     `firestore:"clientName"`
	ClientEmail   string     `firestore:"clientEmail"`
	AdvisorID     string     `firestore:"advisorId"`
	Status        string     `firestore:"status"`
	Locale        string     `firestore:"locale,omitempty"`
	DepartureDate *time.Time `firestore:"departureDate,omitempty"`
	ReturnDate    *time.Time `firestore:"returnDate,omitempty"`
	Notes         string     `firestore:"notes,omitempty"`
	CreatedAt     time.Time  `firestore:"createdAt"`
	UpdatedAt     time.Time  `firestore:"updatedAt"`
}

type dossierFileDocument struct {
	Name        string    `firestore:"name"`
	ContentType string    `firestore:"contentType"`
	SizeBytes   int64     `firestore:"sizeBytes"`
	StoragePath string    `firestore:"storagePath"`
	UploadedBy  string    `firestore:"uploadedBy"`
	UploadedAt  time.Time `firestore:"uploadedAt"`
}

func encodeDossierDocument(dossier domain.Dossier) dossierDocument {
	return dossierDocument{
		TenantID:      strings.TrimSpace(dossier.TenantID),
		Reference:     strings.TrimSpace(dossier.Reference),
		ClientName:    strings.TrimSpace(dossier.ClientName),
		ClientEmail:   strings.TrimSpace(dossier.ClientEmail),
		AdvisorID:     strings.TrimSpace(dossier.AdvisorID),
		Status:        string(dossier.Status),
		Locale:        strings.TrimSpace(dossier.Locale),
		DepartureDate: normalizeTimePointer(dossier.DepartureDate),
		ReturnDate:    normalizeTimePointer(dossier.ReturnDate),
		Notes:         dossier.Notes,
		CreatedAt:     dossier.CreatedAt.UTC(),
		UpdatedAt:     dossier.UpdatedAt.UTC(),
	}
}

func decodeDossierDocument(id string, doc dossierDocument, createTime, updateTime time.Time) domain.Dossier {
	return domain.Dossier{
		ID:            id,
		TenantID:      doc.TenantID,
		Reference:     doc.Reference,
		ClientName:    doc.ClientName,
		ClientEmail:   doc.ClientEmail,
		AdvisorID:     doc.AdvisorID,
		Status:        domain.DossierStatus(doc.Status),
		Locale:        doc.Locale,
		DepartureDate: normalizeTimePointer(doc.DepartureDate),
		ReturnDate:    normalizeTimePointer(doc.ReturnDate),
		Notes:         doc.Notes,
		CreatedAt:     chooseTime(doc.CreatedAt, createTime),
		UpdatedAt:     chooseTime(doc.UpdatedAt, updateTime),
	}
}

func encodeDossierFileDocument(doc domain.DossierDocument) dossierFileDocument {
	return dossierFileDocument{
		Name:        strings.TrimSpace(doc.Name),
		ContentType: strings.TrimSpace(doc.ContentType),
		SizeBytes:   doc.SizeBytes,
		StoragePath: strings.TrimSpace(doc.StoragePath),
		UploadedBy:  strings.TrimSpace(doc.UploadedBy),
		UploadedAt:  doc.UploadedAt.UTC(),
	}
}

func decodeDossierFileDocument(dossierID, documentID string, record dossierFileDocument) domain.DossierDocument {
	return domain.DossierDocument{
		ID:          documentID,
		DossierID:   dossierID,
		Name:        record.Name,
		ContentType: record.ContentType,
		SizeBytes:   record.SizeBytes,
		StoragePath: record.StoragePath,
		UploadedBy:  record.UploadedBy,
		UploadedAt:  record.UploadedAt.UTC(),
	}
}

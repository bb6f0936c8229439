package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arrdem/skrode/internal/domain"
	"github.com/arrdem/skrode/internal/infra/database/models"
)

// IdentityRepository owns persistence for personas, accounts, names,
// services and account edges. It is the only component issuing SQL against
// those tables; each method is one transaction, matching one phase of the
// callers' write sequences.
type IdentityRepository struct {
	db *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) GetOrCreateService(ctx context.Context, name string, urls []string) (domain.Service, error) {
	name = strings.ToLower(name)

	service := models.Service{
		ID:   uuid.NewString(),
		Name: name,
		URLs: urls,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&service).Error
	if err != nil {
		return domain.Service{}, errors.Wrap(err, "create service")
	}

	err = r.db.WithContext(ctx).
		Where("name = ?", name).
		Take(&service).Error
	if err != nil {
		return domain.Service{}, errors.Wrap(err, "fetch service")
	}

	return domain.Service{ID: service.ID, Name: service.Name, URLs: service.URLs}, nil
}

func (r *IdentityRepository) GetAccount(ctx context.Context, serviceID, externalID string) (domain.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Where("service_id = ? AND external_id = ?", serviceID, externalID).
		Take(&account).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Account{}, domain.NotFoundError{Resource: "account"}
	}
	if err != nil {
		return domain.Account{}, errors.Wrap(err, "fetch account")
	}
	return accountToDomain(account), nil
}

// CreateAccount creates an account for a (service, external id) pair. When
// personaID is nil a fresh persona is created in the same transaction, so a
// visible account always has an owner.
func (r *IdentityRepository) CreateAccount(ctx context.Context, serviceID, externalID string, personaID *string) (domain.Account, error) {
	var created models.Account

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner := ""
		if personaID != nil {
			owner = *personaID
		} else {
			persona := models.Persona{ID: uuid.NewString()}
			if err := tx.Create(&persona).Error; err != nil {
				return err
			}
			owner = persona.ID
		}

		created = models.Account{
			ID:         uuid.NewString(),
			ServiceID:  serviceID,
			ExternalID: externalID,
			PersonaID:  owner,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "service_id"}, {Name: "external_id"}},
			DoNothing: true,
		}).Create(&created).Error
	})
	if err != nil {
		return domain.Account{}, errors.Wrap(err, "create account")
	}

	// A concurrent creator may have won the conflict; read back the row that
	// actually exists.
	return r.GetAccount(ctx, serviceID, externalID)
}

func (r *IdentityRepository) GetPersona(ctx context.Context, id string) (domain.Persona, error) {
	var persona models.Persona
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&persona).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Persona{}, domain.NotFoundError{Resource: "persona"}
	}
	if err != nil {
		return domain.Persona{}, errors.Wrap(err, "fetch persona")
	}
	return domain.Persona{ID: persona.ID}, nil
}

func (r *IdentityRepository) CreatePersona(ctx context.Context) (domain.Persona, error) {
	persona := models.Persona{ID: uuid.NewString()}
	if err := r.db.WithContext(ctx).Create(&persona).Error; err != nil {
		return domain.Persona{}, errors.Wrap(err, "create persona")
	}
	return domain.Persona{ID: persona.ID}, nil
}

// ReassignAccounts moves every account owned by one persona to another.
// One merge phase, one transaction.
func (r *IdentityRepository) ReassignAccounts(ctx context.Context, fromPersonaID, toPersonaID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(&models.Account{}).
			Where("persona_id = ?", fromPersonaID).
			Update("persona_id", toPersonaID).Error
	})
}

// ReassignPersonaNames moves every persona-linked name from one persona to
// another. Account-linked names follow their account and are not touched.
func (r *IdentityRepository) ReassignPersonaNames(ctx context.Context, fromPersonaID, toPersonaID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(&models.Name{}).
			Where("persona_id = ?", fromPersonaID).
			Update("persona_id", toPersonaID).Error
	})
}

func (r *IdentityRepository) DeletePersona(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Delete(&models.Persona{}, "id = ?", id).Error
	})
}

// GetOrCreateName inserts a name row keyed by (owner, text). The same text
// may exist under two different owners simultaneously; that ambiguity is
// what the crawlers resolve.
func (r *IdentityRepository) GetOrCreateName(ctx context.Context, name domain.Name) (domain.Name, error) {
	if name.AccountID == nil && name.PersonaID == nil {
		return domain.Name{}, domain.ConstraintError{Reason: "name must reference an account or a persona"}
	}

	query := r.db.WithContext(ctx).Where("text = ?", name.Text)
	if name.AccountID != nil {
		query = query.Where("account_id = ?", *name.AccountID)
	} else {
		query = query.Where("persona_id = ?", *name.PersonaID)
	}

	var row models.Name
	err := query.Take(&row).Error
	if err == nil {
		return nameToDomain(row), nil
	}
	if err != gorm.ErrRecordNotFound {
		return domain.Name{}, errors.Wrap(err, "fetch name")
	}

	row = models.Name{
		ID:        uuid.NewString(),
		Text:      name.Text,
		AccountID: name.AccountID,
		PersonaID: name.PersonaID,
		When:      name.When,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Name{}, errors.Wrap(err, "create name")
	}
	return nameToDomain(row), nil
}

// FindPersonasByName searches both persona-linked and account-linked names,
// closest-length match first, de-duplicated by persona id.
func (r *IdentityRepository) FindPersonasByName(ctx context.Context, text string, exact bool, limit int) ([]domain.Persona, error) {
	type hit struct {
		PersonaID string
	}

	query := r.db.WithContext(ctx).
		Table("names").
		Select("COALESCE(accounts.persona_id, names.persona_id) AS persona_id").
		Joins("LEFT JOIN accounts ON accounts.id = names.account_id").
		Order(fmt.Sprintf("ABS(LENGTH(names.text) - %d)", len(text)))

	if exact {
		query = query.Where("names.text = ?", text)
	} else {
		query = query.Where("names.text LIKE ?", "%"+text+"%")
	}

	var hits []hit
	if err := query.Scan(&hits).Error; err != nil {
		return nil, errors.Wrap(err, "search names")
	}

	seen := map[string]bool{}
	var personas []domain.Persona
	for _, h := range hits {
		if h.PersonaID == "" || seen[h.PersonaID] {
			continue
		}
		seen[h.PersonaID] = true
		personas = append(personas, domain.Persona{ID: h.PersonaID})
		if limit > 0 && len(personas) == limit {
			break
		}
	}
	return personas, nil
}

func (r *IdentityRepository) AccountsForPersona(ctx context.Context, personaID string) ([]domain.Account, error) {
	var rows []models.Account
	err := r.db.WithContext(ctx).
		Where("persona_id = ?", personaID).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "fetch accounts")
	}

	accounts := make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, accountToDomain(row))
	}
	return accounts, nil
}

func (r *IdentityRepository) NamesForPersona(ctx context.Context, personaID string) ([]domain.Name, error) {
	var rows []models.Name
	err := r.db.WithContext(ctx).
		Select("names.*").
		Joins("LEFT JOIN accounts ON accounts.id = names.account_id").
		Where("names.persona_id = ? OR accounts.persona_id = ?", personaID, personaID).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "fetch names")
	}

	names := make([]domain.Name, 0, len(rows))
	for _, row := range rows {
		names = append(names, nameToDomain(row))
	}
	return names, nil
}

func (r *IdentityRepository) GetOrCreateAccountRelationship(ctx context.Context, leftID, rightID string, rel domain.RelKind, when time.Time) error {
	row := models.AccountRelationship{
		ID:      uuid.NewString(),
		LeftID:  leftID,
		RightID: rightID,
		Rel:     string(rel),
		When:    when,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "left_id"}, {Name: "right_id"}, {Name: "rel"}},
		DoNothing: true,
	}).Create(&row).Error
	return errors.Wrap(err, "create account relationship")
}

func accountToDomain(row models.Account) domain.Account {
	return domain.Account{
		ID:         row.ID,
		ServiceID:  row.ServiceID,
		ExternalID: row.ExternalID,
		PersonaID:  row.PersonaID,
		More:       row.More,
	}
}

func nameToDomain(row models.Name) domain.Name {
	return domain.Name{
		ID:        row.ID,
		Text:      row.Text,
		AccountID: row.AccountID,
		PersonaID: row.PersonaID,
		When:      row.When,
	}
}

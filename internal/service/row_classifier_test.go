package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-course-api/internal/models"
)

type mockIdentityReader struct {
	byCode  map[string]*models.Identity
	byEmail map[string]*models.Identity
}

func (m *mockIdentityReader) FindByCode(ctx context.Context, code string) (*models.Identity, error) {
	if id, ok := m.byCode[code]; ok {
		return id, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockIdentityReader) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	if id, ok := m.byEmail[email]; ok {
		return id, nil
	}
	return nil, sql.ErrNoRows
}

type mockEnrollmentChecker struct {
	enrolled map[string]bool
}

func (m *mockEnrollmentChecker) Exists(ctx context.Context, exec sqlx.ExtContext, offeringID, studentCode string) (bool, error) {
	return m.enrolled[offeringID+"/"+studentCode], nil
}

type mockAccountReader struct {
	accounts map[string]*models.StudentAccount
}

func (m *mockAccountReader) FindByCode(ctx context.Context, code string) (*models.StudentAccount, error) {
	if a, ok := m.accounts[code]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

func registeredIdentity() *models.Identity {
	return &models.Identity{
		ID:        "id-1",
		Code:      "S100",
		Email:     "ana@example.edu",
		FirstName: "Ana",
		LastName:  "Silva",
	}
}

func newClassifier(identities *mockIdentityReader, enrollments *mockEnrollmentChecker, accounts *mockAccountReader) *RowClassifier {
	if identities == nil {
		identities = &mockIdentityReader{}
	}
	if enrollments == nil {
		enrollments = &mockEnrollmentChecker{}
	}
	if accounts == nil {
		accounts = &mockAccountReader{}
	}
	return NewRowClassifier(identities, enrollments, accounts, nil)
}

func TestRowClassifierMissingFields(t *testing.T) {
	c := newClassifier(nil, nil, nil)

	cases := []RowInput{
		{StudentCode: "", Email: "a@b.edu", FirstName: "A", LastName: "B"},
		{StudentCode: "S1", Email: "   ", FirstName: "A", LastName: "B"},
		{StudentCode: "S1", Email: "a@b.edu", FirstName: "", LastName: "B"},
		{StudentCode: "S1", Email: "a@b.edu", FirstName: "A", LastName: ""},
	}
	for _, in := range cases {
		verdict, err := c.Classify(context.Background(), "off-1", in)
		require.NoError(t, err)
		assert.Equal(t, models.RowStatusMissing, verdict.Status)
		assert.Equal(t, "required fields missing", verdict.Note)
	}
}

func TestRowClassifierMissingWinsOverEnrolled(t *testing.T) {
	// An incomplete row is MISSING even when its code is already enrolled.
	enrollments := &mockEnrollmentChecker{enrolled: map[string]bool{"off-1/S100": true}}
	c := newClassifier(nil, enrollments, nil)

	verdict, err := c.Classify(context.Background(), "off-1", RowInput{StudentCode: "S100"})
	require.NoError(t, err)
	assert.Equal(t, models.RowStatusMissing, verdict.Status)
}

func TestRowClassifierAlreadyEnrolled(t *testing.T) {
	identities := &mockIdentityReader{
		byCode:  map[string]*models.Identity{"S100": registeredIdentity()},
		byEmail: map[string]*models.Identity{"ana@example.edu": registeredIdentity()},
	}
	enrollments := &mockEnrollmentChecker{enrolled: map[string]bool{"off-1/S100": true}}
	c := newClassifier(identities, enrollments, nil)

	verdict, err := c.Classify(context.Background(), "off-1", RowInput{
		StudentCode: "S100", Email: "ana@example.edu", FirstName: "Ana", LastName: "Silva",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RowStatusAlreadyEnrolled, verdict.Status)
	assert.Empty(t, verdict.Note)
}

func TestRowClassifierEnrolledElsewhereIsNotEnrolledHere(t *testing.T) {
	identities := &mockIdentityReader{
		byCode:  map[string]*models.Identity{"S100": registeredIdentity()},
		byEmail: map[string]*models.Identity{"ana@example.edu": registeredIdentity()},
	}
	enrollments := &mockEnrollmentChecker{enrolled: map[string]bool{"off-2/S100": true}}
	c := newClassifier(identities, enrollments, nil)

	verdict, err := c.Classify(context.Background(), "off-1", RowInput{
		StudentCode: "S100", Email: "ana@example.edu", FirstName: "Ana", LastName: "Silva",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RowStatusExistsNotEnrolled, verdict.Status)
}

func TestRowClassifierNew(t *testing.T) {
	c := newClassifier(nil, nil, nil)

	verdict, err := c.Classify(context.Background(), "off-1", RowInput{
		StudentCode: "S999", Email: "new@example.edu", FirstName: "New", LastName: "Student",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RowStatusNew, verdict.Status)
	assert.Empty(t, verdict.Note)
}

func TestRowClassifierExistsNotEnrolled(t *testing.T) {
	identities := &mockIdentityReader{
		byCode:  map[string]*models.Identity{"S100": registeredIdentity()},
		byEmail: map[string]*models.Identity{"ana@example.edu": registeredIdentity()},
	}
	c := newClassifier(identities, nil, nil)

	verdict, err := c.Classify(context.Background(), "off-1", RowInput{
		StudentCode: "S100", Email: "ana@example.edu", FirstName: "Ana", LastName: "Silva",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RowStatusExistsNotEnrolled, verdict.Status)
	assert.Empty(t, verdict.Note)
}

func TestRowClassifierNameMismatchIsAdvisory(t *testing.T) {
	identities := &mockIdentityReader{
		byCode:  map[string]*models.Identity{"S100": registeredIdentity()},
		byEmail: map[string]*models.Identity{"ana@example.edu": registeredIdentity()},
	}
	c := newClassifier(identities, nil, nil)

	verdict, err := c.Classify(context.Background(), "off-1", RowInput{
		StudentCode: "S100", Email: "ana@example.edu", FirstName: "Anna", LastName: "Silva",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RowStatusExistsNotEnrolled, verdict.Status)
	assert.Equal(t, "registered name is Ana Silva", verdict.Note)
}

func TestRowClassifierCodeTakenByOtherEmail(t *testing.T) {
	identities := &mockIdentityReader{
		byCode: map[string]*models.Identity{"S100": registeredIdentity()},
	}
	c := newClassifier(identities, nil, nil)

	verdict, err := c.Classify(context.Background(), "off-1", RowInput{
		StudentCode: "S100", Email: "other@example.edu", FirstName: "Ana", LastName: "Silva",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RowStatusDuplicateIdentity, verdict.Status)
	assert.Contains(t, verdict.Note, "ana@example.edu")
}

func TestRowClassifierEmailTakenByOtherCode(t *testing.T) {
	identities := &mockIdentityReader{
		byEmail: map[string]*models.Identity{"ana@example.edu": registeredIdentity()},
	}
	c := newClassifier(identities, nil, nil)

	verdict, err := c.Classify(context.Background(), "off-1", RowInput{
		StudentCode: "S200", Email: "ana@example.edu", FirstName: "Ana", LastName: "Silva",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RowStatusDuplicateIdentity, verdict.Status)
	assert.Contains(t, verdict.Note, "S100")
}

func TestRowClassifierCodeAndEmailBelongToDifferentIdentities(t *testing.T) {
	other := &models.Identity{ID: "id-2", Code: "S200", Email: "bob@example.edu", FirstName: "Bob", LastName: "Reis"}
	identities := &mockIdentityReader{
		byCode:  map[string]*models.Identity{"S100": registeredIdentity()},
		byEmail: map[string]*models.Identity{"bob@example.edu": other},
	}
	c := newClassifier(identities, nil, nil)

	verdict, err := c.Classify(context.Background(), "off-1", RowInput{
		StudentCode: "S100", Email: "bob@example.edu", FirstName: "Ana", LastName: "Silva",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RowStatusDuplicateIdentity, verdict.Status)
	assert.Contains(t, verdict.Note, "ana@example.edu")
	assert.Contains(t, verdict.Note, "S200")
}

func TestRowClassifierAccountFallback(t *testing.T) {
	accounts := &mockAccountReader{accounts: map[string]*models.StudentAccount{
		"S300": {Code: "S300", Email: "carla@example.edu"},
	}}
	c := newClassifier(nil, nil, accounts)

	verdict, err := c.Classify(context.Background(), "off-1", RowInput{
		StudentCode: "S300", Email: "carla@example.edu", FirstName: "Carla", LastName: "Melo",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RowStatusExistsNotEnrolled, verdict.Status)

	verdict, err = c.Classify(context.Background(), "off-1", RowInput{
		StudentCode: "S300", Email: "someone@example.edu", FirstName: "Carla", LastName: "Melo",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RowStatusDuplicateIdentity, verdict.Status)
	assert.Contains(t, verdict.Note, "carla@example.edu")
}

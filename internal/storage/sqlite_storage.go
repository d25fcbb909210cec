package storage

import (
	"campaignclient/internal/logger"
	"campaignclient/internal/model"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type SqliteStorage struct {
	db *gorm.DB
}

func NewSqliteStorage(path string) (*SqliteStorage, error) {

	logger.Debug("initializing database...", zap.String("path", path))
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open database %s", path)
	}

	err = db.AutoMigrate(
		&StoredPassword{},
		&SubmittedResponse{},
	)
	if err != nil {
		return nil, errors.Wrap(err, "migrate database")
	}

	logger.Debug("initializing database... done")
	return &SqliteStorage{
		db: db,
	}, nil
}

func (s *SqliteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SqliteStorage) GetPassword(campaignID, holder string) (*StoredPassword, error) {

	var password StoredPassword
	err := s.db.Where("campaign_id = ? and holder = ?", campaignID, model.NormalizeAddress(holder)).First(&password).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &password, nil
}

func (s *SqliteStorage) SavePassword(password *StoredPassword) error {
	logger.Debug("saving campaign password...", zap.String("campaign", password.CampaignID), zap.String("source", password.Source))

	row := *password
	row.Holder = model.NormalizeAddress(row.Holder)
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "holder"}},
		DoUpdates: clause.AssignmentColumns([]string{"password", "source", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return err
	}

	logger.Debug("saving campaign password... done")
	return nil
}

func (s *SqliteStorage) DeletePassword(campaignID, holder string) error {
	logger.Debug("deleting campaign password", zap.String("campaign", campaignID))

	return s.db.Where("campaign_id = ? and holder = ?", campaignID, model.NormalizeAddress(holder)).
		Delete(&StoredPassword{}).Error
}

func (s *SqliteStorage) GetSubmission(campaignID, respondent string) (*SubmittedResponse, error) {

	var submission SubmittedResponse
	err := s.db.Where("campaign_id = ? and respondent = ?", campaignID, model.NormalizeAddress(respondent)).First(&submission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &submission, nil
}

func (s *SqliteStorage) HasSubmitted(campaignID, respondent string) (bool, error) {

	var count int64
	err := s.db.Model(&SubmittedResponse{}).
		Where("campaign_id = ? and respondent = ?", campaignID, model.NormalizeAddress(respondent)).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (s *SqliteStorage) RecordSubmission(submission *SubmittedResponse) error {
	logger.Debug("recording submission...", zap.String("campaign", submission.CampaignID), zap.String("digest", submission.TxDigest))

	row := *submission
	row.Respondent = model.NormalizeAddress(row.Respondent)
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "respondent"}},
		DoUpdates: clause.AssignmentColumns([]string{"tx_digest", "submitted_at"}),
	}).Create(&row).Error
	if err != nil {
		return err
	}

	logger.Debug("recording submission... done")
	return nil
}

func (s *SqliteStorage) RecordSubmissions(submissions []*SubmittedResponse) error {
	logger.Debug("recording observed submissions...")

	if len(submissions) == 0 {
		logger.Debug("no submissions to persist")
		return nil
	}

	rows := make([]*SubmittedResponse, len(submissions))
	for i, submission := range submissions {
		row := *submission
		row.Respondent = model.NormalizeAddress(row.Respondent)
		rows[i] = &row
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "respondent"}},
		DoNothing: true,
	}).CreateInBatches(rows, 100).Error
	if err != nil {
		return err
	}

	logger.Debug("recording observed submissions... done", zap.Int("count", len(rows)))
	return nil
}

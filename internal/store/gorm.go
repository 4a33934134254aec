package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/imgsync/pkg/types"
)

// imageRecord ids come from one sequence, so they stay unique per room and
// are never reused.
type imageRecord struct {
	ID          uint32 `gorm:"primaryKey;autoIncrement"`
	LobbyID     string `gorm:"size:64;not null;index:idx_images_lobby_room,priority:1"`
	RoomID      uint32 `gorm:"not null;index:idx_images_lobby_room,priority:2"`
	ContentType string `gorm:"size:128"`
	Data        []byte `gorm:"not null"`
	CreatedAt   time.Time
}

func (imageRecord) TableName() string { return "images" }

type GormStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// OpenPostgres connects to dsn and migrates the images table.
func OpenPostgres(dsn string, log *zap.Logger) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewGormStore(db, log)
}

func NewGormStore(db *gorm.DB, log *zap.Logger) (*GormStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := db.AutoMigrate(&imageRecord{}); err != nil {
		return nil, fmt.Errorf("migrate images: %w", err)
	}
	return &GormStore{db: db, log: log}, nil
}

func (s *GormStore) Save(ctx context.Context, lobby types.LobbyID, room types.RoomID, contentType string, data []byte) (types.ImgID, error) {
	rec := imageRecord{
		LobbyID:     string(lobby),
		RoomID:      uint32(room),
		ContentType: contentType,
		Data:        data,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return 0, fmt.Errorf("save image: %w", err)
	}
	s.log.Debug("image saved", zap.String("lobby_id", string(lobby)), zap.Uint32("room_id", rec.RoomID), zap.Uint32("img_id", rec.ID))
	return types.ImgID(rec.ID), nil
}

func (s *GormStore) Get(ctx context.Context, lobby types.LobbyID, room types.RoomID, img types.ImgID, _ bool) (Image, error) {
	var rec imageRecord
	err := s.db.WithContext(ctx).
		Where("lobby_id = ? AND room_id = ? AND id = ?", string(lobby), uint32(room), uint32(img)).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Image{}, ErrNotFound
	}
	if err != nil {
		return Image{}, fmt.Errorf("get image: %w", err)
	}
	return Image{
		Lobby:       types.LobbyID(rec.LobbyID),
		Room:        types.RoomID(rec.RoomID),
		ID:          types.ImgID(rec.ID),
		ContentType: rec.ContentType,
		Data:        rec.Data,
		CreatedAt:   rec.CreatedAt,
	}, nil
}

func (s *GormStore) ListRooms(ctx context.Context, lobby types.LobbyID) ([]types.RoomID, error) {
	var ids []uint32
	err := s.db.WithContext(ctx).
		Model(&imageRecord{}).
		Where("lobby_id = ?", string(lobby)).
		Distinct("room_id").
		Order("room_id").
		Pluck("room_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	rooms := make([]types.RoomID, 0, len(ids))
	for _, id := range ids {
		rooms = append(rooms, types.RoomID(id))
	}
	return rooms, nil
}

func (s *GormStore) ListImages(ctx context.Context, lobby types.LobbyID, room types.RoomID) ([]types.ImgID, error) {
	var ids []uint32
	err := s.db.WithContext(ctx).
		Model(&imageRecord{}).
		Where("lobby_id = ? AND room_id = ?", string(lobby), uint32(room)).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	imgs := make([]types.ImgID, 0, len(ids))
	for _, id := range ids {
		imgs = append(imgs, types.ImgID(id))
	}
	return imgs, nil
}

func (s *GormStore) deleteWhere(ctx context.Context, query string, args ...any) (bool, error) {
	res := s.db.WithContext(ctx).Where(query, args...).Delete(&imageRecord{})
	if res.Error != nil {
		return false, fmt.Errorf("delete images: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) DeleteLobby(ctx context.Context, lobby types.LobbyID) (bool, error) {
	return s.deleteWhere(ctx, "lobby_id = ?", string(lobby))
}

func (s *GormStore) DeleteRoom(ctx context.Context, lobby types.LobbyID, room types.RoomID) (bool, error) {
	return s.deleteWhere(ctx, "lobby_id = ? AND room_id = ?", string(lobby), uint32(room))
}

func (s *GormStore) DeleteImage(ctx context.Context, lobby types.LobbyID, room types.RoomID, img types.ImgID) (bool, error) {
	return s.deleteWhere(ctx, "lobby_id = ? AND room_id = ? AND id = ?", string(lobby), uint32(room), uint32(img))
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ Store = (*GormStore)(nil)

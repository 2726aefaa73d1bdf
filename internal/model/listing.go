package model

import "time"

// Listing は貸し出し物件を表す。
// UserIDは所有者のusernameで、常にトークンから設定される。
type Listing struct {
	ID            int64
	Title         string
	Description   string
	Location      string
	Type          string
	PricePerNight int
	UserID        string
	Images        []string
	CreatedAt     time.Time
}

// Image は物件に紐づく画像を表す。
// ObjectKeyはオブジェクトストレージ上のキーで、削除時に使用する。
type Image struct {
	ID         int64
	ListingID  int64
	UploadedBy string
	URL        string
	ObjectKey  string
	CreatedAt  time.Time
}

// ListingPatch は物件の部分更新内容を表す。nilのフィールドは更新しない。
type ListingPatch struct {
	Title         *string
	Description   *string
	Location      *string
	Type          *string
	PricePerNight *int
}

// Empty は更新対象のフィールドが1つもないかを返す。
func (p ListingPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Location == nil &&
		p.Type == nil && p.PricePerNight == nil
}

// Apply はnilでないフィールドをlistingへ反映する。
func (p ListingPatch) Apply(l *Listing) {
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.Location != nil {
		l.Location = *p.Location
	}
	if p.Type != nil {
		l.Type = *p.Type
	}
	if p.PricePerNight != nil {
		l.PricePerNight = *p.PricePerNight
	}
}

package types

type VideoQuality string

const (
	VideoQuality480p  VideoQuality = "480p"
	VideoQuality720p  VideoQuality = "720p"
	VideoQuality1080p VideoQuality = "1080p"
	VideoQuality4K    VideoQuality = "4K"
)

func (q VideoQuality) Valid() bool {
	switch q {
	case VideoQuality480p, VideoQuality720p, VideoQuality1080p, VideoQuality4K:
		return true
	}
	return false
}

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

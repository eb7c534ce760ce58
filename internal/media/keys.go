package media

// Object key layout. Profile pictures key off the owner's normalized
// identity so re-uploads overwrite in place; message attachments key off
// the client-chosen file name.

const (
	profilePrefix = "images/"
	photoPrefix   = "message_images/"
	videoPrefix   = "message_videos/"

	profileSuffix = "_profile_picture.png"
)

// ProfilePictureKey returns the storage key for a user's avatar.
func ProfilePictureKey(safeEmail string) string {
	return profilePrefix + safeEmail + profileSuffix
}

// MessagePhotoKey returns the storage key for a photo attachment.
func MessagePhotoKey(fileName string) string {
	return photoPrefix + fileName
}

// MessageVideoKey returns the storage key for a video attachment.
func MessageVideoKey(fileName string) string {
	return videoPrefix + fileName
}

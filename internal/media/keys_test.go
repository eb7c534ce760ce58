package media

import "testing"

func TestProfilePictureKey(t *testing.T) {
	got := ProfilePictureKey("smruthi096-gmail-com")
	want := "images/smruthi096-gmail-com_profile_picture.png"
	if got != want {
		t.Fatalf("ProfilePictureKey = %q, want %q", got, want)
	}
}

func TestAttachmentKeys(t *testing.T) {
	if got := MessagePhotoKey("photo_message_abc.png"); got != "message_images/photo_message_abc.png" {
		t.Fatalf("MessagePhotoKey = %q", got)
	}
	if got := MessageVideoKey("video_message_abc.mov"); got != "message_videos/video_message_abc.mov" {
		t.Fatalf("MessageVideoKey = %q", got)
	}
}

// Package services talks to the remote audio archive.
//
// [ArchiveService] fetches a folder page and scrapes it into [models.AudioItem] values. The archive
// serves plain HTML, so listings are parsed with goquery rather than decoded from an API.
package services

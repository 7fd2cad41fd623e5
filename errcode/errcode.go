/*
Copyright (C) 2026  quillfs contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package errcode defines the wire-level error taxonomy shared by the
// storage-server components and the protocol layer.
package errcode

// Code is a protocol-level error identifier, carried verbatim in an
// ERROR frame's error_code field.
type Code string

const (
	Success               Code = "SUCCESS"
	FileNotFound          Code = "FILE_NOT_FOUND"
	FileExists            Code = "FILE_EXISTS"
	FileEmpty             Code = "FILE_EMPTY"
	FileOperationFailed   Code = "FILE_OPERATION_FAILED"
	InvalidPath           Code = "INVALID_PATH"
	InvalidSentence       Code = "INVALID_SENTENCE"
	InvalidWord           Code = "INVALID_WORD"
	SentenceLocked        Code = "SENTENCE_LOCKED"
	PermissionDenied      Code = "PERMISSION_DENIED"
	UndoNotAvailable      Code = "UNDO_NOT_AVAILABLE"
	CheckpointExists      Code = "CHECKPOINT_EXISTS"
	CheckpointNotFound    Code = "CHECKPOINT_NOT_FOUND"
	StorageServerDown     Code = "SS_UNAVAILABLE"
	InvalidCommand        Code = "INVALID_COMMAND"
	RegistryFull          Code = "REGISTRY_FULL"
)

// Error pairs a protocol Code with a human-readable message. Handlers
// compute one of these on failure and the dispatcher serializes it
// verbatim into an ERROR frame.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Msg
}

// New constructs an *Error for code with the given message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Is lets errors.Is match two *Error values purely by Code, so callers
// can compare against a sentinel created with a different message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is comparisons where no extra message is needed.
var (
	ErrFileNotFound       = &Error{Code: FileNotFound}
	ErrFileExists         = &Error{Code: FileExists}
	ErrFileEmpty          = &Error{Code: FileEmpty}
	ErrFileOperationFailed = &Error{Code: FileOperationFailed}
	ErrInvalidPath        = &Error{Code: InvalidPath}
	ErrInvalidSentence    = &Error{Code: InvalidSentence}
	ErrInvalidWord        = &Error{Code: InvalidWord}
	ErrSentenceLocked     = &Error{Code: SentenceLocked}
	ErrPermissionDenied   = &Error{Code: PermissionDenied}
	ErrUndoNotAvailable   = &Error{Code: UndoNotAvailable}
	ErrCheckpointExists   = &Error{Code: CheckpointExists}
	ErrCheckpointNotFound = &Error{Code: CheckpointNotFound}
	ErrStorageServerDown  = &Error{Code: StorageServerDown}
	ErrInvalidCommand     = &Error{Code: InvalidCommand}
	ErrRegistryFull       = &Error{Code: RegistryFull}
)

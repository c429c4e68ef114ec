package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamPayloadKey returns the cache key for an exam's participant-facing payload
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// ParticipantAnswersKey returns the cache key for a participant's live answers mirror
func (r *CacheKeyStruct) ParticipantAnswersKey(examID string, participantID int) string {
	return fmt.Sprintf("participant:%d:exam:%s:answers", participantID, examID)
}

// SessionStartKey returns the cache key for a session's start timestamp
func (r *CacheKeyStruct) SessionStartKey(examID string, participantID int) string {
	return fmt.Sprintf("participant:%d:exam:%s:session_start", participantID, examID)
}

// GuardProbeKey is the key written by the environment guard's reachability check
func (r *CacheKeyStruct) GuardProbeKey(examID string, participantID int) string {
	return fmt.Sprintf("participant:%d:exam:%s:guard_probe", participantID, examID)
}

var CacheKey = NewCacheKeyStruct()

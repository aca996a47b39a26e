package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// StudentExamStartKey returns the cache key for a student's server-recorded exam start time
func (r *CacheKeyStruct) StudentExamStartKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:start", studentID, examID)
}

// StudentAnswersKey returns the cache key for a student's autosaved answers
func (r *CacheKeyStruct) StudentAnswersKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:answers", studentID, examID)
}

// StudentWarningsKey returns the cache key for a student's live warning count
func (r *CacheKeyStruct) StudentWarningsKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:warnings", studentID, examID)
}

// ExamAnswerKey returns the cache key for an exam's answer key
func (r *CacheKeyStruct) ExamAnswerKey(examID string) string {
	return fmt.Sprintf("exam:%s:key", examID)
}

// ExamMonitorChannel returns the Redis PubSub channel name mirroring an
// exam's monitor room. Durable fallback for tools without a socket.
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

var CacheKey = NewCacheKeyStruct()

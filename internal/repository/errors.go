package repository

import "errors"

// 各存储实现统一返回的哨兵错误
var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicate     = errors.New("duplicate record")
	ErrAlreadyMember = errors.New("already a member")
	ErrNotMember     = errors.New("not a member")
	// ErrStale 条件更新时记录已被并发修改
	ErrStale         = errors.New("record changed concurrently")
)

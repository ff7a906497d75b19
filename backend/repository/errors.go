package repository

import "errors"

// 通用仓储错误
var (
	// ErrNotFound 实体不存在
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidData 数据无效
	ErrInvalidData = errors.New("invalid entity data")
)

// Node 相关错误
var (
	ErrNodeNotFound = errors.New("node not found")
)

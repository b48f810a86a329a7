package model

import "time"

// Todo は1件のタスクを表す。
// 所有者（UserID）は作成時に確定し、以後変更されない。
// 参照・更新・削除はすべて所有者スコープのクエリを通してのみ行われる。
type Todo struct {
	ID        string
	UserID    string
	Title     string
	Completed bool
	CreatedAt time.Time
}

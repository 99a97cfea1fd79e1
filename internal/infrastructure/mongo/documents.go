package mongo

import "time"

// entryDocument は KV コレクション上の 1 レコードを表す。キーは _id に格納する。
type entryDocument struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

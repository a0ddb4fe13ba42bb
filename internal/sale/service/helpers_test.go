package service_test

import "github.com/bwmarrin/snowflake"

func snowflakeID(v int64) snowflake.ID { return snowflake.ID(v) }

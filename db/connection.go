// Copyright 2024-2025 NetCracker Technology Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-pg/pg/v10"
	"github.com/go-pg/pg/v10/orm"
	log "github.com/sirupsen/logrus"
)

type ConnectionProvider interface {
	GetConnection() *pg.DB
	Close() error
}

type DbCredentials struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

func NewConnectionProvider(creds *DbCredentials) ConnectionProvider {
	return &connectionProviderImpl{creds: creds}
}

type connectionProviderImpl struct {
	creds *DbCredentials
	db    *pg.DB
	once  sync.Once
}

func (c *connectionProviderImpl) GetConnection() *pg.DB {
	c.once.Do(func() {
		c.db = pg.Connect(&pg.Options{
			Addr:     fmt.Sprintf("%s:%d", c.creds.Host, c.creds.Port),
			User:     c.creds.Username,
			Password: c.creds.Password,
			Database: c.creds.Database,
			PoolSize: 50,
		})
		log.Infof("Connection to database %s:%d/%s is configured", c.creds.Host, c.creds.Port, c.creds.Database)
	})
	return c.db
}

func (c *connectionProviderImpl) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// CreateSchema creates the tables for the given models if they don't exist yet.
func CreateSchema(ctx context.Context, cp ConnectionProvider, models ...interface{}) error {
	conn := cp.GetConnection()
	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("database is not available: %w", err)
	}
	for _, model := range models {
		err := conn.Model(model).CreateTable(&orm.CreateTableOptions{IfNotExists: true})
		if err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}
	return nil
}

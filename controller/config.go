package controller

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

const (
	intFieldLen = 8
	intBits     = 48
	minInt48    = -1 << (intBits - 1)
	maxInt48    = 1<<(intBits-1) - 1
)

// configKey encodes `namespace 0x00 name 0x00`.
func configKey(namespace, name string) ([]byte, error) {
	if strings.IndexByte(namespace, 0) >= 0 || strings.IndexByte(name, 0) >= 0 {
		return nil, fmt.Errorf("config key %q/%q contains a zero byte", namespace, name)
	}
	key := make([]byte, 0, len(namespace)+len(name)+3)
	key = append(key, namespace...)
	key = append(key, 0)
	key = append(key, name...)
	key = append(key, 0)
	return key, nil
}

func (c *Controller) configSet(ctx context.Context, namespace, name string, t ValueType, value []byte) error {
	key, err := configKey(namespace, name)
	if err != nil {
		return err
	}
	args := append(append(key, byte(t)), value...)
	_, err = c.call(ctx, "config set "+namespace+"/"+name, ConfigSet, args, OK)
	return err
}

func (c *Controller) configGet(ctx context.Context, namespace, name string, t ValueType) ([]byte, error) {
	key, err := configKey(namespace, name)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, "config get "+namespace+"/"+name, ConfigGet, append(key, byte(t)), ConfigGet)
}

// ConfigSetInt stores a signed integer. The device keeps 48 bits.
func (c *Controller) ConfigSetInt(ctx context.Context, namespace, name string, value int64) error {
	if value < minInt48 || value > maxInt48 {
		return fmt.Errorf("config set %s/%s: %w: %d", namespace, name, ErrValueOutOfRange, value)
	}
	buf := make([]byte, intFieldLen)
	binary.LittleEndian.PutUint64(buf, uint64(value))
	return c.configSet(ctx, namespace, name, TypeInt64, buf)
}

// ConfigSetFloat stores a 32-bit float.
func (c *Controller) ConfigSetFloat(ctx context.Context, namespace, name string, value float32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(value))
	return c.configSet(ctx, namespace, name, TypeFloat32, buf)
}

// ConfigSetString stores a string.
func (c *Controller) ConfigSetString(ctx context.Context, namespace, name, value string) error {
	return c.configSet(ctx, namespace, name, TypeString, []byte(value))
}

// ConfigGetInt reads a signed integer.
func (c *Controller) ConfigGetInt(ctx context.Context, namespace, name string) (int64, error) {
	data, err := c.configGet(ctx, namespace, name, TypeInt64)
	if err != nil {
		return 0, err
	}
	if len(data) < intBits/8 {
		return 0, fmt.Errorf("config get %s/%s: %w (%d bytes)", namespace, name, ErrMalformedResponse, len(data))
	}
	var v uint64
	for i := intBits/8 - 1; i >= 0; i-- {
		v = v<<8 | uint64(data[i])
	}
	// sign-extend from bit 47
	return int64(v<<(64-intBits)) >> (64 - intBits), nil
}

// ConfigGetFloat reads a 32-bit float.
func (c *Controller) ConfigGetFloat(ctx context.Context, namespace, name string) (float32, error) {
	data, err := c.configGet(ctx, namespace, name, TypeFloat32)
	if err != nil {
		return 0, err
	}
	if len(data) < 4 {
		return 0, fmt.Errorf("config get %s/%s: %w (%d bytes)", namespace, name, ErrMalformedResponse, len(data))
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(data)), nil
}

// ConfigGetString reads a string.
func (c *Controller) ConfigGetString(ctx context.Context, namespace, name string) (string, error) {
	data, err := c.configGet(ctx, namespace, name, TypeString)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ConfigErase removes a key.
func (c *Controller) ConfigErase(ctx context.Context, namespace, name string) error {
	key, err := configKey(namespace, name)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, "config erase "+namespace+"/"+name, ConfigErase, key, OK)
	return err
}

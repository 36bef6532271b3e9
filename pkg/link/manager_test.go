package link_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/thingprov/thingprov-go/pkg/envelope"
	"github.com/thingprov/thingprov-go/pkg/link"
	"github.com/thingprov/thingprov-go/pkg/link/mocks"
)

var testPeripheral = link.Peripheral{Address: "AA:BB:CC:DD:EE:FF", Name: "id24A160E1B2C3", RSSI: -48}

func connected(t *testing.T) (*link.Manager, *mocks.MockDevice, *link.Conn) {
	t.Helper()
	adapter := mocks.NewMockAdapter(t)
	dev := mocks.NewMockDevice(t)

	adapter.EXPECT().Enable().Return(nil).Once()
	adapter.EXPECT().Connect(mock.Anything, testPeripheral).Return(dev, nil).Once()
	dev.EXPECT().Characteristics(mock.Anything, link.ServiceUUID).Return(link.Characteristics, nil).Once()

	m := link.NewManager(adapter)
	conn, err := m.Connect(context.Background(), testPeripheral)
	require.NoError(t, err)
	require.NoError(t, m.DiscoverCapabilities(context.Background(), conn))
	return m, dev, conn
}

func TestManagerScanFiltersAndStops(t *testing.T) {
	adapter := mocks.NewMockAdapter(t)
	adapter.EXPECT().Enable().Return(nil).Once()
	adapter.EXPECT().Scan(mock.Anything, mock.Anything).RunAndReturn(
		func(ctx context.Context, found func(link.Peripheral)) error {
			found(link.Peripheral{Address: "1", Name: "other"})
			found(testPeripheral)
			<-ctx.Done()
			return nil
		}).Once()
	adapter.EXPECT().StopScan().Return(nil).Maybe()

	m := link.NewManager(adapter)
	ch, err := m.Scan(context.Background(), func(p link.Peripheral) bool {
		return p.Name == testPeripheral.Name
	})
	require.NoError(t, err)

	select {
	case p := <-ch:
		assert.Equal(t, testPeripheral, p)
	case <-time.After(time.Second):
		t.Fatal("no peripheral reported")
	}

	require.NoError(t, m.StopScan())
	for range ch {
	}
	require.NoError(t, m.StopScan(), "stopping twice is a no-op")
}

func TestManagerScanEndsWithContext(t *testing.T) {
	adapter := mocks.NewMockAdapter(t)
	adapter.EXPECT().Enable().Return(nil).Once()
	adapter.EXPECT().Scan(mock.Anything, mock.Anything).RunAndReturn(
		func(ctx context.Context, _ func(link.Peripheral)) error {
			<-ctx.Done()
			return ctx.Err()
		}).Once()

	m := link.NewManager(adapter)
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := m.Scan(ctx, nil)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("scan channel not closed")
	}
}

func TestManagerRejectsConcurrentScan(t *testing.T) {
	adapter := mocks.NewMockAdapter(t)
	adapter.EXPECT().Enable().Return(nil).Once()
	release := make(chan struct{})
	adapter.EXPECT().Scan(mock.Anything, mock.Anything).RunAndReturn(
		func(ctx context.Context, _ func(link.Peripheral)) error {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		}).Once()
	adapter.EXPECT().StopScan().Return(nil).Maybe()

	m := link.NewManager(adapter)
	ch, err := m.Scan(context.Background(), nil)
	require.NoError(t, err)

	_, err = m.Scan(context.Background(), nil)
	assert.ErrorIs(t, err, link.ErrScanActive)
	assert.ErrorIs(t, err, link.ErrLink)

	close(release)
	for range ch {
	}
}

func TestManagerEnableFailure(t *testing.T) {
	adapter := mocks.NewMockAdapter(t)
	adapter.EXPECT().Enable().Return(errors.New("bluetooth off")).Once()

	m := link.NewManager(adapter)
	_, err := m.Scan(context.Background(), nil)
	assert.ErrorIs(t, err, link.ErrLink)

	_, err = m.Connect(context.Background(), testPeripheral)
	assert.ErrorIs(t, err, link.ErrLink)
}

func TestManagerConnectFailure(t *testing.T) {
	adapter := mocks.NewMockAdapter(t)
	adapter.EXPECT().Enable().Return(nil).Once()
	adapter.EXPECT().Connect(mock.Anything, testPeripheral).Return(nil, errors.New("timeout")).Once()

	m := link.NewManager(adapter)
	_, err := m.Connect(context.Background(), testPeripheral)
	assert.ErrorIs(t, err, link.ErrLink)
}

func TestManagerSingleConnection(t *testing.T) {
	m, dev, conn := connected(t)

	_, err := m.Connect(context.Background(), testPeripheral)
	assert.ErrorIs(t, err, link.ErrAlreadyConnected)

	dev.EXPECT().Disconnect().Return(nil).Once()
	require.NoError(t, m.Disconnect(conn))
}

func TestManagerMissingCharacteristic(t *testing.T) {
	adapter := mocks.NewMockAdapter(t)
	dev := mocks.NewMockDevice(t)
	adapter.EXPECT().Enable().Return(nil).Once()
	adapter.EXPECT().Connect(mock.Anything, testPeripheral).Return(dev, nil).Once()
	dev.EXPECT().Characteristics(mock.Anything, link.ServiceUUID).Return(
		[]link.Characteristic{link.CharPoP, link.CharWifi, link.CharRootCA, link.CharThingCert, link.CharNotify}, nil).Once()

	m := link.NewManager(adapter)
	conn, err := m.Connect(context.Background(), testPeripheral)
	require.NoError(t, err)

	err = m.DiscoverCapabilities(context.Background(), conn)
	assert.ErrorIs(t, err, link.ErrMissingChar)
	assert.ErrorIs(t, err, link.ErrLink)
	assert.Contains(t, err.Error(), "thing_key")
}

func TestManagerMissingService(t *testing.T) {
	adapter := mocks.NewMockAdapter(t)
	dev := mocks.NewMockDevice(t)
	adapter.EXPECT().Enable().Return(nil).Once()
	adapter.EXPECT().Connect(mock.Anything, testPeripheral).Return(dev, nil).Once()
	dev.EXPECT().Characteristics(mock.Anything, link.ServiceUUID).Return(nil, link.ErrMissingService).Once()

	m := link.NewManager(adapter)
	conn, err := m.Connect(context.Background(), testPeripheral)
	require.NoError(t, err)
	assert.ErrorIs(t, m.DiscoverCapabilities(context.Background(), conn), link.ErrMissingService)
}

func TestManagerWrite(t *testing.T) {
	m, dev, conn := connected(t)

	key, err := envelope.ParseKey("000102030405060708090a0b0c0d0e0f")
	require.NoError(t, err)
	frame, err := envelope.Seal([]byte(`{"type":"root_ca","ready":1,"row":"x"}`), key)
	require.NoError(t, err)
	raw, err := envelope.Unframe(frame)
	require.NoError(t, err)

	dev.EXPECT().Write(mock.Anything, link.CharRootCA, raw).Return(nil).Once()
	require.NoError(t, m.Write(context.Background(), conn, link.CharRootCA, frame))

	dev.EXPECT().Write(mock.Anything, link.CharThingKey, raw).Return(errors.New("att error 0x0e")).Once()
	err = m.Write(context.Background(), conn, link.CharThingKey, frame)
	assert.ErrorIs(t, err, link.ErrLink)

	err = m.Write(context.Background(), conn, link.CharNotify, frame)
	assert.ErrorIs(t, err, link.ErrLink)
}

func TestManagerWriteSendsRawEnvelope(t *testing.T) {
	m, dev, conn := connected(t)

	key, err := envelope.ParseKey("000102030405060708090a0b0c0d0e0f")
	require.NoError(t, err)
	var iv [envelope.IVSize]byte
	for i := range iv {
		iv[i] = byte(0xf0 + i)
	}
	pop := []byte("00112233445566778899aabbccddeeff")
	env, err := envelope.EncryptWithIV(pop, key, iv)
	require.NoError(t, err)

	var written []byte
	dev.EXPECT().Write(mock.Anything, link.CharPoP, mock.Anything).Run(
		func(_ context.Context, _ link.Characteristic, data []byte) {
			written = data
		}).Return(nil).Once()
	require.NoError(t, m.Write(context.Background(), conn, link.CharPoP, []byte(env.Encode())))

	require.Len(t, written, envelope.IVSize+len(pop))
	assert.Equal(t, iv[:], written[:envelope.IVSize])
	plaintext, err := envelope.OpenRaw(written, key)
	require.NoError(t, err)
	assert.Equal(t, pop, plaintext)

	err = m.Write(context.Background(), conn, link.CharPoP, []byte("not base64!"))
	assert.ErrorIs(t, err, link.ErrLink)
	assert.ErrorIs(t, err, envelope.ErrMalformed)
}

func TestManagerSubscribeErrors(t *testing.T) {
	m, dev, conn := connected(t)

	var (
		onNotify func([]byte)
		onErr    func(error)
	)
	dev.EXPECT().Subscribe(link.CharNotify, mock.Anything, mock.Anything).Run(
		func(_ link.Characteristic, n func([]byte), e func(error)) {
			onNotify, onErr = n, e
		}).Return(nil).Once()

	var (
		frames [][]byte
		errs   []error
	)
	require.NoError(t, m.Subscribe(conn,
		func(b []byte) { frames = append(frames, b) },
		func(err error) { errs = append(errs, err) },
	))

	onNotify([]byte("eyJ0eXBlIjoicHJvdmlzaW9uIn0="))
	require.Len(t, frames, 1)

	onErr(errors.New("connection lost"))
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], link.ErrLink)

	m.MarkComplete()
	assert.True(t, m.Completed())
	onErr(errors.New("device reset"))
	assert.Len(t, errs, 1, "errors after completion are swallowed")

	dev.EXPECT().Unsubscribe(link.CharNotify).Return(nil).Once()
	dev.EXPECT().Disconnect().Return(nil).Once()
	require.NoError(t, m.Disconnect(conn))
}

func TestManagerDisconnectIdempotent(t *testing.T) {
	m, dev, conn := connected(t)

	dev.EXPECT().Disconnect().Return(errors.New("already gone")).Once()
	err := m.Disconnect(conn)
	assert.ErrorIs(t, err, link.ErrLink)
	assert.True(t, conn.Closed())

	assert.NoError(t, m.Disconnect(conn))
	assert.NoError(t, m.Disconnect(nil))

	err = m.Write(context.Background(), conn, link.CharPoP, []byte("x"))
	assert.ErrorIs(t, err, link.ErrNotConnected)
}

func TestCharacteristicString(t *testing.T) {
	assert.Equal(t, "pop", link.CharPoP.String())
	assert.Equal(t, "notify", link.CharNotify.String())
	assert.Equal(t, "0x2a00", link.Characteristic(0x2a00).String())
	assert.True(t, link.CharThingKey.Writable())
	assert.False(t, link.CharNotify.Writable())
}

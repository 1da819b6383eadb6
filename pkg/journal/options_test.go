package journal

import (
	"errors"
	"syscall"
	"testing"
)

func TestOptionsRequest(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		wantMode OpenMode
		wantErr  error
	}{
		{name: "default", opts: Options{}, wantMode: ModeDefault},
		{name: "directory", opts: Options{Path: "/tmp/j", Flags: OSRoot}, wantMode: ModeDirectory},
		{name: "dirfd", opts: Options{DirFD: 7}, wantMode: ModeDirFD},
		{name: "files", opts: Options{Files: []string{"a.journal"}}, wantMode: ModeFiles},
		{name: "fds", opts: Options{FileFDs: []int{3}}, wantMode: ModeFileFDs},
		{name: "namespace", opts: Options{Namespace: "foo"}, wantMode: ModeNamespace},

		{name: "two sources", opts: Options{Path: "/tmp", Files: []string{"x"}}, wantErr: ErrInvalidArgument},
		{name: "unknown flag", opts: Options{Flags: 1 << 10}, wantErr: ErrInvalidArgument},
		{name: "os root without path", opts: Options{Flags: OSRoot}, wantErr: ErrInvalidArgument},
		{name: "runtime only with directory", opts: Options{Path: "/tmp", Flags: RuntimeOnly}, wantErr: ErrInvalidArgument},
		{name: "flags with files", opts: Options{Files: []string{"x"}, Flags: System}, wantErr: ErrInvalidArgument},
		{name: "negative fd", opts: Options{FileFDs: []int{-3}}, wantErr: ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			if opts.DirFD == 0 {
				opts.DirFD = NoFD
			}
			req, err := opts.request()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("request() = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("request(): %v", err)
			}
			if req.Mode != tt.wantMode {
				t.Errorf("mode = %s, want %s", req.Mode, tt.wantMode)
			}
		})
	}
}

func TestOptionsDefaultFlags(t *testing.T) {
	req, err := withDefaults(Options{}).request()
	if err != nil {
		t.Fatal(err)
	}
	if req.Flags != DefaultFlags {
		t.Errorf("flags = %s, want %s", req.Flags, DefaultFlags)
	}

	req, err = withDefaults(Options{FlagsSet: true}).request()
	if err != nil {
		t.Fatal(err)
	}
	if req.Flags != 0 {
		t.Errorf("explicit zero flags became %s", req.Flags)
	}
}

func TestWithDefaults(t *testing.T) {
	t.Setenv("SDREADER_ENGINE", "")
	opts := withDefaults(Options{})
	if opts.Engine != DefaultEngine {
		t.Errorf("engine = %q", opts.Engine)
	}
	if opts.Logger == nil {
		t.Error("no default logger")
	}
	if opts.DirFD != NoFD {
		t.Errorf("DirFD = %d, want NoFD", opts.DirFD)
	}

	t.Setenv("SDREADER_ENGINE", "libsystemd")
	if got := withDefaults(Options{}).Engine; got != "libsystemd" {
		t.Errorf("engine from environment = %q", got)
	}
	if got := withDefaults(Options{Engine: "native"}).Engine; got != "native" {
		t.Errorf("explicit engine overridden: %q", got)
	}
}

func TestOpenFlagsString(t *testing.T) {
	tests := []struct {
		f    OpenFlags
		want string
	}{
		{0, "0"},
		{LocalOnly, "local_only"},
		{System | CurrentUser, "system|current_user"},
		{OSRoot | 1<<8, "os_root|0x100"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", int(tt.f), got, tt.want)
		}
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{syscall.EINVAL, ErrInvalidArgument},
		{syscall.ENOENT, ErrNotFound},
		{syscall.ENOMEM, ErrOutOfMemory},
		{syscall.EOPNOTSUPP, ErrUnsupported},
		{syscall.EBADMSG, ErrIO},
		{errors.New("boom"), ErrIO},
		{ErrNoEntry, ErrNotFound},
		{errors.ErrUnsupported, ErrUnsupported},
	}
	for _, tt := range tests {
		got := translate("op", tt.in)
		if !errors.Is(got, tt.want) {
			t.Errorf("translate(%v) = %v, want kind %v", tt.in, got, tt.want)
		}
		if !errors.Is(got, tt.in) {
			t.Errorf("translate(%v) lost the original error", tt.in)
		}
	}
	if translate("op", nil) != nil {
		t.Error("translate(nil) != nil")
	}

	var ioErr *IOError
	if !errors.As(translate("op", syscall.EBADMSG), &ioErr) || ioErr.Errno != syscall.EBADMSG {
		t.Errorf("errno not kept: %#v", ioErr)
	}
}

func TestExtractField(t *testing.T) {
	name, v, err := extractField([]byte("MESSAGE=a=b\x00"))
	if err != nil || name != "MESSAGE" || string(v) != "a=b\x00" {
		t.Errorf("extractField = %q, %q, %v", name, v, err)
	}

	_, _, err = extractField([]byte("NOEQUALS"))
	if !errors.Is(err, ErrProtocol) || !errors.Is(err, ErrIO) {
		t.Errorf("extractField without '=' = %v", err)
	}
	var ioErr *IOError
	if !errors.As(err, &ioErr) || ioErr.Errno != errnoUClean {
		t.Errorf("errno = %v, want EUCLEAN", ioErr)
	}
}

func TestTimeoutMS(t *testing.T) {
	tests := []struct {
		deadline, now uint64
		want          int
	}{
		{deadline: 100, now: 200, want: 0},
		{deadline: 200, now: 200, want: 0},
		{deadline: 1001, now: 0, want: 2},
		{deadline: 250_000, now: 0, want: 250},
	}
	for _, tt := range tests {
		if got := timeoutMS(tt.deadline, tt.now); got != tt.want {
			t.Errorf("timeoutMS(%d, %d) = %d, want %d", tt.deadline, tt.now, got, tt.want)
		}
	}
}

func TestConverters(t *testing.T) {
	e := &Entry{Fields: Fields{
		"PRIORITY":   Single([]byte("3")),
		"_PID":       Single([]byte("not a number")),
		"MESSAGE":    Single([]byte("hi")),
		"BLOB":       Single([]byte{0xff, 0xfe}),
		"TAG":        Multi([]byte("a"), []byte("b")),
		"MESSAGE_ID": Single([]byte("fc2e22bc6ee647b6b90729ab34a250b1")),
	}}
	got := e.Convert(DefaultConverters())

	if got["PRIORITY"] != int64(3) {
		t.Errorf("PRIORITY = %#v", got["PRIORITY"])
	}
	if b, ok := got["_PID"].([]byte); !ok || string(b) != "not a number" {
		t.Errorf("failed conversion = %#v, want raw bytes", got["_PID"])
	}
	if got["MESSAGE"] != "hi" {
		t.Errorf("MESSAGE = %#v", got["MESSAGE"])
	}
	if _, ok := got["BLOB"].([]byte); !ok {
		t.Errorf("BLOB = %#v, want []byte", got["BLOB"])
	}
	if l, ok := got["TAG"].([]any); !ok || len(l) != 2 || l[0] != "a" {
		t.Errorf("TAG = %#v", got["TAG"])
	}
	if id, ok := got["MESSAGE_ID"].(ID128); !ok || id.String() != "fc2e22bc6ee647b6b90729ab34a250b1" {
		t.Errorf("MESSAGE_ID = %#v", got["MESSAGE_ID"])
	}
}

func TestParseID128(t *testing.T) {
	hex, err := ParseID128("fc2e22bc6ee647b6b90729ab34a250b1")
	if err != nil {
		t.Fatal(err)
	}
	dashed, err := ParseID128(" fc2e22bc-6ee6-47b6-b907-29ab34a250b1\n")
	if err != nil {
		t.Fatal(err)
	}
	if hex != dashed {
		t.Errorf("hex and UUID forms differ: %v vs %v", hex, dashed)
	}
	for _, bad := range []string{
		"",
		"fc2e22bc",
		"{fc2e22bc-6ee6-47b6-b907-29ab34a250b1}",
		"urn:uuid:fc2e22bc-6ee6-47b6-b907-29ab34a250b1",
		"zz2e22bc6ee647b6b90729ab34a250b1",
	} {
		if _, err := ParseID128(bad); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("ParseID128(%q) = %v, want invalid argument", bad, err)
		}
	}
}

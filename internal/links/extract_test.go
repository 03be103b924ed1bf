package links

import (
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Link
	}{
		{
			name: "username and invite link",
			text: "join @alice_group123 and https://t.me/joinchat/XYZ789",
			want: []Link{
				{Text: "https://t.me/joinchat/XYZ789", Kind: KindInvite},
				{Text: "@alice_group123", Kind: KindUsername},
			},
		},
		{
			name: "plus style invite",
			text: "here https://t.me/+AbCdEf123",
			want: []Link{
				{Text: "https://t.me/+AbCdEf123", Kind: KindInvite},
			},
		},
		{
			name: "public t.me link is a username join",
			text: "see t.me/golang_news",
			want: []Link{
				{Text: "t.me/golang_news", Kind: KindUsername},
			},
		},
		{
			name: "duplicates collapse",
			text: "@devs @devs t.me/joinchat/abc t.me/joinchat/abc",
			want: []Link{
				{Text: "t.me/joinchat/abc", Kind: KindInvite},
				{Text: "@devs", Kind: KindUsername},
			},
		},
		{
			name: "empty text",
			text: "nothing to see here",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("Extract() returned %d links, want %d: %v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("link %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestExtract_CaseInsensitiveDedupe(t *testing.T) {
	got := Extract("@MyGroup and @mygroup")
	if len(got) != 1 {
		t.Fatalf("expected 1 unique link, got %d", len(got))
	}
	if got[0].Text != "@MyGroup" {
		t.Errorf("first occurrence should win, got %s", got[0].Text)
	}
}
